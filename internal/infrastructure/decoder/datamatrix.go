package decoder

import (
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"

	"code-scanner/internal/domain/entity"
	"code-scanner/internal/domain/port"
)

// NewDataMatrixDecoder создаёт декодер Data Matrix; несколько символов ищутся по частям области
func NewDataMatrixDecoder() port.Decoder {
	return &zxingDecoder{
		codeType: entity.CodeTypeDataMatrix,
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
		readers: []readerFactory{
			func() gozxing.Reader { return datamatrix.NewDataMatrixReader() },
		},
	}
}
