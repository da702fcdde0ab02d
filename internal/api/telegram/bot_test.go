package telegram

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	app "code-scanner/internal/application"
	"code-scanner/internal/domain/entity"
	"code-scanner/internal/infrastructure/decoder"
	"code-scanner/internal/infrastructure/detector"
	"code-scanner/internal/infrastructure/render"
	"code-scanner/internal/infrastructure/storage"
	"code-scanner/internal/testutil"
)

type fakeAPI struct {
	fileURL string
	sent    []tgbotapi.Chattable
	updates chan tgbotapi.Update
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) texts() []string {
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) photos() []tgbotapi.PhotoConfig {
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

type botFixture struct {
	bot   *Bot
	api   *fakeAPI
	users *app.UserService
}

// files отдаёт содержимое по имени file_id
func newBotFixture(t *testing.T, files map[string][]byte) *botFixture {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	pipeline := app.NewPipeline(
		detector.NewFullFrameDetector(app.LabelQRCode),
		app.LabelDecoders(decoder.NewBarcodeDecoder(), decoder.NewDataMatrixDecoder()),
		app.DefaultConfidenceThreshold, nil)
	scanner := app.NewScanService(pipeline, render.NewAnnotator(), nil, storage.NewMemoryStatsRepository(), nil)
	users := app.NewUserService(storage.NewMemoryUserRepository())

	api := &fakeAPI{fileURL: srv.URL, updates: make(chan tgbotapi.Update)}
	return &botFixture{bot: newBot(api, users, scanner, 0, nil), api: api, users: users}
}

func command(text string) *tgbotapi.Message {
	name := strings.Fields(text)[0]
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 70},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func textMessage(s string) *tgbotapi.Message {
	return &tgbotapi.Message{From: &tgbotapi.User{ID: 7}, Chat: &tgbotapi.Chat{ID: 70}, Text: s}
}

func qrPNG(t *testing.T, text string) []byte {
	canvas := testutil.Canvas(320, 320)
	testutil.Place(canvas, testutil.QRCode(t, text, 240), image.Pt(40, 40))
	return testutil.PNG(t, canvas)
}

func TestBot_Commands(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	f.bot.handleMessage(ctx, command("/scan"))
	user, err := f.users.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingImage, user.State)

	f.bot.handleMessage(ctx, command("/cancel"))
	user, err = f.users.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	f.bot.handleMessage(ctx, command("/start"))
	f.bot.handleMessage(ctx, command("/help"))
	f.bot.handleMessage(ctx, command("/unknown"))
	f.bot.handleMessage(ctx, textMessage("hi"))

	require.Equal(t, []string{msgAwaitingImage, msgCancelled, msgStart, msgHelp, msgUnknownCommand, msgScanHint}, f.api.texts())
}

func TestBot_TextReplyDependsOnState(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx := context.Background()

	f.bot.handleMessage(ctx, textMessage("что делать?"))
	f.bot.handleMessage(ctx, command("/scan"))
	f.bot.handleMessage(ctx, textMessage("вот код"))
	f.bot.handleMessage(ctx, command("/cancel"))
	f.bot.handleMessage(ctx, textMessage("ещё раз"))

	require.Equal(t, []string{msgScanHint, msgAwaitingImage, msgSendImage, msgCancelled, msgScanHint}, f.api.texts())

	// текст не сбрасывает ожидание картинки
	f.bot.handleMessage(ctx, command("/scan"))
	f.bot.handleMessage(ctx, textMessage("?"))
	user, err := f.users.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingImage, user.State)
}

func TestBot_RejectsOversizedFiles(t *testing.T) {
	big := qrPNG(t, "TOO-BIG")
	f := newBotFixture(t, map[string][]byte{"big": big})
	f.bot.maxBytes = int64(len(big)) - 1
	ctx := context.Background()

	// размер известен заранее: файл не скачивается
	f.bot.handleMessage(ctx, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 7},
		Chat:  &tgbotapi.Chat{ID: 70},
		Photo: []tgbotapi.PhotoSize{{FileID: "big", FileSize: len(big)}},
	})
	// размер не указан: обрывается при скачивании
	f.bot.handleMessage(ctx, &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 70},
		Document: &tgbotapi.Document{FileID: "big", FileName: "big.png"},
	})

	tooLarge := f.bot.tooLargeText()
	require.Equal(t, []string{tooLarge, msgProcessing, tooLarge}, f.api.texts())
	require.Empty(t, f.api.photos())

	_, err := f.bot.downloadFile(ctx, "big")
	require.ErrorIs(t, err, errFileTooLarge)

	f.bot.maxBytes = int64(len(big))
	data, err := f.bot.downloadFile(ctx, "big")
	require.NoError(t, err)
	require.Equal(t, big, data)
}

func TestBot_DownloadWithoutContentLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// chunked ответ без Content-Length
		for i := 0; i < 8; i++ {
			w.Write(make([]byte, 1024))
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)

	b := newBot(&fakeAPI{fileURL: srv.URL}, nil, nil, 4096, nil)
	_, err := b.downloadFile(context.Background(), "stream")
	require.ErrorIs(t, err, errFileTooLarge)

	b = newBot(&fakeAPI{fileURL: srv.URL}, nil, nil, 0, nil)
	require.Equal(t, DefaultMaxFileBytes, b.maxBytes)
	data, err := b.downloadFile(context.Background(), "stream")
	require.NoError(t, err)
	require.Len(t, data, 8*1024)
}

func TestBot_PhotoWithCode(t *testing.T) {
	f := newBotFixture(t, map[string][]byte{"big": qrPNG(t, "HELLO-BOT")})
	ctx := context.Background()

	f.bot.handleMessage(ctx, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 7},
		Chat:  &tgbotapi.Chat{ID: 70},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	})

	texts := f.api.texts()
	require.Len(t, texts, 2)
	require.Equal(t, msgProcessing, texts[0])
	require.Contains(t, texts[1], "BARCODE: HELLO-BOT")

	photos := f.api.photos()
	require.Len(t, photos, 1)
	require.Equal(t, int64(70), photos[0].ChatID)
	file, ok := photos[0].File.(tgbotapi.FileBytes)
	require.True(t, ok)
	require.NotEmpty(t, file.Bytes)

	user, err := f.users.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
	require.Equal(t, 1, user.Scans)

	f.bot.handleMessage(ctx, command("/stats"))
	stats := f.api.texts()[2]
	require.Contains(t, stats, "Всего сканирований: 1")
	require.Contains(t, stats, "Найдено кодов: 1")
	require.Contains(t, stats, "Ваших изображений: 1")
}

func TestBot_DocumentWithoutCodes(t *testing.T) {
	f := newBotFixture(t, map[string][]byte{"doc": testutil.PNG(t, testutil.Canvas(100, 100))})

	f.bot.handleMessage(context.Background(), &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 70},
		Document: &tgbotapi.Document{FileID: "doc", FileName: "scan.png", MimeType: "image/png"},
	})

	require.Equal(t, []string{msgProcessing, msgNoCodes}, f.api.texts())
	require.Empty(t, f.api.photos())
}

func TestBot_BrokenImageAndDownloadFailure(t *testing.T) {
	f := newBotFixture(t, map[string][]byte{"junk": []byte("not an image")})
	ctx := context.Background()

	f.bot.handleMessage(ctx, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 7},
		Chat:  &tgbotapi.Chat{ID: 70},
		Photo: []tgbotapi.PhotoSize{{FileID: "junk"}},
	})
	f.bot.handleMessage(ctx, &tgbotapi.Message{
		From:  &tgbotapi.User{ID: 7},
		Chat:  &tgbotapi.Chat{ID: 70},
		Photo: []tgbotapi.PhotoSize{{FileID: "missing"}},
	})

	require.Equal(t, []string{msgProcessing, msgInvalidImage, msgProcessing, msgProcessingError}, f.api.texts())

	user, err := f.users.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)
}

func TestBot_RunStopsOnContextCancel(t *testing.T) {
	f := newBotFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	f.api.updates <- tgbotapi.Update{Message: command("/help")}
	f.api.updates <- tgbotapi.Update{}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
	require.Equal(t, []string{msgHelp}, f.api.texts())
}

func TestFormatResult(t *testing.T) {
	got := formatResult([]entity.Detection{
		{Type: entity.CodeTypeBarcode, Data: "4006381333931"},
		{Type: entity.CodeTypeDataMatrix, Data: "LOT-1"},
	})
	require.Equal(t, "✅ Найдено кодов: 2\n\nBARCODE: 4006381333931\nDATA-MATRIX: LOT-1", got)
}

func TestFormatStats(t *testing.T) {
	require.Contains(t, formatStats(entity.ScanStats{}, 0), "ещё не было")

	at := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	got := formatStats(entity.ScanStats{TotalScans: 3, TotalCodes: 5, LastScanAt: at}, 2)
	require.Contains(t, got, "Всего сканирований: 3")
	require.Contains(t, got, "05.03.2024 14:07:09")
	require.Contains(t, got, "Ваших изображений: 2")
}

func TestIsImageDocument(t *testing.T) {
	require.False(t, isImageDocument(nil))
	require.True(t, isImageDocument(&tgbotapi.Document{MimeType: "image/jpeg"}))
	require.True(t, isImageDocument(&tgbotapi.Document{FileName: "label.BMP"}))
	require.False(t, isImageDocument(&tgbotapi.Document{FileName: "report.pdf", MimeType: "application/pdf"}))
}
