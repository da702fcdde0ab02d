package decoder

import (
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// NewBarcodeDecoder создаёт декодер QR и линейных штрихкодов (Code 128, Code 39, UPC/EAN).
// Возвращает все коды области.
func NewBarcodeDecoder() port.Decoder {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &zxingDecoder{
		codeType: entity.CodeTypeBarcode,
		hints:    hints,
		multi: []multiReaderFactory{
			func() multi.MultipleBarcodeReader { return multiqr.NewQRCodeMultiReader() },
		},
		readers: []readerFactory{
			// одиночный QR reader подбирает символы, которые multi-детектор не сгруппировал
			func() gozxing.Reader { return qrcode.NewQRCodeReader() },
			func() gozxing.Reader { return oned.NewCode128Reader() },
			func() gozxing.Reader { return oned.NewCode39Reader() },
			func() gozxing.Reader { return oned.NewMultiFormatUPCEANReader(hints) },
		},
	}
}
