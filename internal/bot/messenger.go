package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger adapts the Telegram API to the narrow transport surface the
// orchestrator and progress reporter depend on.
type Messenger struct {
	api *tgbotapi.BotAPI
}

func NewMessenger(api *tgbotapi.BotAPI) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) Send(chatID int64, text string) (int, error) {
	sent, err := m.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (m *Messenger) Edit(chatID int64, messageID int, text string) error {
	_, err := m.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (m *Messenger) SendVideo(chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption

	_, err := m.api.Send(video)
	return err
}
