package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "code-scanner/internal/application"
	"code-scanner/internal/apperrors"
	"code-scanner/internal/domain/entity"
	"code-scanner/internal/logging"
)

const (
	msgStart = `👋 Привет! Я бот для распознавания штрихкодов, QR-кодов и Data Matrix.

📸 Отправьте мне фото или картинку с кодом, и я верну его содержимое и изображение с разметкой.

📋 Команды:
/scan — распознать код
/stats — статистика
/help — справка
/cancel — отменить текущую операцию`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Отправьте фото (или картинку файлом, чтобы не терять качество)
2️⃣ Бот найдёт коды на изображении
3️⃣ Вы получите содержимое кодов и фото с их контурами

💡 Рекомендации:
• Код должен быть в фокусе и целиком в кадре
• Избегайте бликов на глянцевых этикетках
• Мелкие коды лучше отправлять файлом

📋 Команды:
/scan — распознать код
/stats — статистика
/cancel — отменить операцию`

	msgAwaitingImage   = "📸 Отправьте фото с кодом."
	msgCancelled       = "❌ Операция отменена. Отправьте /scan для нового распознавания."
	msgSendImage       = "📸 Пожалуйста, отправьте фото или картинку с кодом."
	msgScanHint        = "💡 Отправьте /scan, чтобы распознать код, или сразу пришлите фото."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Обрабатываю изображение..."
	msgNoCodes         = "🤷 Коды не найдены. Попробуйте снять ближе или ровнее."
	msgInvalidImage    = "⚠️ Не удалось прочитать изображение. Поддерживаются PNG, JPEG, BMP и GIF."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте другое фото."
	msgTooLarge        = "⚠️ Файл слишком большой. Максимальный размер: %d МБ."
)

// DefaultMaxFileBytes предел размера скачиваемого файла, если не задан
const DefaultMaxFileBytes int64 = 16 << 20

var errFileTooLarge = errors.New("file is too large")

// ImageScanner то, что боту нужно от сервиса сканирования
type ImageScanner interface {
	ScanImage(ctx context.Context, data []byte) (*entity.ScanResult, error)
	Stats(ctx context.Context) (entity.ScanStats, error)
}

// botAPI часть tgbotapi.BotAPI, которой пользуется бот
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot представляет Telegram-бота
type Bot struct {
	api     botAPI
	users   *app.UserService
	scanner ImageScanner
	client   *http.Client
	maxBytes int64
	log      *logging.Logger
}

// NewBot создаёт нового бота; maxBytes ограничивает размер скачиваемого изображения
func NewBot(token string, users *app.UserService, scanner ImageScanner, maxBytes int64, log *logging.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot := newBot(api, users, scanner, maxBytes, log)
	bot.log.Info("authorized", "account", api.Self.UserName)
	return bot, nil
}

func newBot(api botAPI, users *app.UserService, scanner ImageScanner, maxBytes int64, log *logging.Logger) *Bot {
	if log == nil {
		log = logging.Nop()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	return &Bot{
		api:      api,
		users:    users,
		scanner:  scanner,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: maxBytes,
		log:      log,
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	user, err := b.users.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.log.Error("failed to get user", "user_id", msg.From.ID, "error", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// Фото: берём файл с максимальным разрешением
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		b.handleImage(ctx, msg, largest.FileID, int64(largest.FileSize))
		return
	}

	// Картинка, отправленная файлом
	if isImageDocument(msg.Document) {
		b.handleImage(ctx, msg, msg.Document.FileID, int64(msg.Document.FileSize))
		return
	}

	// Текст вместо картинки: после /scan напоминаем про фото, иначе подсказываем команду
	if user.State == entity.StateAwaitingImage {
		b.sendMessage(msg.Chat.ID, msgSendImage)
		return
	}
	b.sendMessage(msg.Chat.ID, msgScanHint)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *entity.User) {
	var err error
	switch msg.Command() {
	case "start":
		_, err = b.users.Cancel(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgStart)

	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)

	case "scan":
		_, err = b.users.BeginScan(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgAwaitingImage)

	case "stats":
		stats, statsErr := b.scanner.Stats(ctx)
		if statsErr != nil {
			b.log.Warn("failed to load stats", "error", statsErr)
		}
		b.sendMessage(msg.Chat.ID, formatStats(stats, user.Scans))

	case "cancel":
		_, err = b.users.Cancel(ctx, user.ID, user.ChatID)
		b.sendMessage(msg.Chat.ID, msgCancelled)

	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}

	if err != nil {
		b.log.Error("failed to update user state", "user_id", user.ID, "command", msg.Command(), "error", err)
	}
}

// handleImage скачивает изображение, распознаёт коды и отправляет результат.
// size размер файла из сообщения, 0 если Telegram его не сообщил
func (b *Bot) handleImage(ctx context.Context, msg *tgbotapi.Message, fileID string, size int64) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	if size > b.maxBytes {
		b.log.Warn("image rejected", "user_id", userID, "bytes", size, "limit", b.maxBytes)
		b.sendMessage(chatID, b.tooLargeText())
		return
	}

	if _, err := b.users.SetState(ctx, userID, chatID, entity.StateProcessing); err != nil {
		b.log.Error("failed to update user state", "user_id", userID, "error", err)
	}
	defer func() {
		if _, err := b.users.FinishScan(ctx, userID, chatID); err != nil {
			b.log.Error("failed to finish scan", "user_id", userID, "error", err)
		}
	}()

	b.sendMessage(chatID, msgProcessing)

	data, err := b.downloadFile(ctx, fileID)
	if errors.Is(err, errFileTooLarge) {
		b.log.Warn("image rejected", "user_id", userID, "file_id", fileID, "error", err)
		b.sendMessage(chatID, b.tooLargeText())
		return
	}
	if err != nil {
		b.log.Error("failed to download image", "file_id", fileID, "error", err)
		b.sendMessage(chatID, msgProcessingError)
		return
	}

	result, err := b.scanner.ScanImage(ctx, data)
	if err != nil {
		b.log.Warn("scan failed", "user_id", userID, "code", apperrors.CodeOf(err), "error", err)
		if apperrors.CodeOf(err) == apperrors.CodeInvalidImage {
			b.sendMessage(chatID, msgInvalidImage)
		} else {
			b.sendMessage(chatID, msgProcessingError)
		}
		return
	}

	b.log.Info("image scanned", "user_id", userID, "bytes", len(data), "codes", len(result.Detections))

	if !result.HasCodes() {
		b.sendMessage(chatID, msgNoCodes)
		return
	}

	b.sendMessage(chatID, formatResult(result.Detections))

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "scan.jpg", Bytes: result.Annotated})
	if _, err := b.api.Send(photo); err != nil {
		b.log.Error("failed to send photo", "chat_id", chatID, "error", err)
	}
}

// downloadFile скачивает файл из Telegram, не больше maxBytes
func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	if resp.ContentLength > b.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes > %d", errFileTooLarge, resp.ContentLength, b.maxBytes)
	}

	// Content-Length может отсутствовать, поэтому читаем на байт больше предела
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > b.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", errFileTooLarge, b.maxBytes)
	}

	return data, nil
}

func (b *Bot) tooLargeText() string {
	return fmt.Sprintf(msgTooLarge, max(1, b.maxBytes>>20))
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

// formatResult одна строка "ТИП: данные" на каждый найденный код
func formatResult(detections []entity.Detection) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Найдено кодов: %d\n", len(detections))
	for _, d := range detections {
		sb.WriteString("\n")
		sb.WriteString(d.Label())
	}
	return sb.String()
}

func formatStats(stats entity.ScanStats, userScans int) string {
	last := "ещё не было"
	if !stats.LastScanAt.IsZero() {
		last = stats.LastScanAt.Format("02.01.2006 15:04:05")
	}
	return fmt.Sprintf("📊 Статистика\n\nВсего сканирований: %d\nНайдено кодов: %d\nПоследнее сканирование: %s\nВаших изображений: %d",
		stats.TotalScans, stats.TotalCodes, last, userScans)
}

// isImageDocument картинка, отправленная как файл
func isImageDocument(doc *tgbotapi.Document) bool {
	if doc == nil {
		return false
	}
	if strings.HasPrefix(doc.MimeType, "image/") {
		return true
	}
	return doc.FileName != "" && app.AllowedFile(path.Base(doc.FileName))
}
