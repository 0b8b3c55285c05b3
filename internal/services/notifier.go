package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/smtp"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/models"
)

// Notifier delivers fired alert notifications over the channels the alert
// asked for: email via SMTP, push via Discord webhook and/or DM.
type Notifier struct {
	cfg      *config.Config
	settings *SettingsService
	discord  *discordgo.Session
	http     *http.Client
}

func NewNotifier(cfg *config.Config, settings *SettingsService) *Notifier {
	var session *discordgo.Session
	if cfg.DiscordBotToken != "" {
		s, err := discordgo.New("Bot " + cfg.DiscordBotToken)
		if err == nil {
			session = s
		} else {
			log.Error().Err(err).Msg("Failed to initialize discordgo session in Notifier")
		}
	}

	return &Notifier{
		cfg:      cfg,
		settings: settings,
		discord:  session,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// ErrNoChannel means the notification wanted channels the user has not
// configured or has disabled. Treated as a delivery failure.
var ErrNoChannel = errors.New("no delivery channel available")

// Deliver sends one notification. It succeeds when at least one requested
// channel accepts the message.
func (n *Notifier) Deliver(ctx context.Context, job DeliveryJob) error {
	wantEmail := job.Notification.NotificationType == models.AlertTypeEmail ||
		job.Notification.NotificationType == models.AlertTypeBoth
	wantPush := job.Notification.NotificationType == models.AlertTypePush ||
		job.Notification.NotificationType == models.AlertTypeBoth

	var delivered bool
	var errs []error

	if wantEmail && job.EmailEnabled && job.UserEmail != "" {
		if err := n.sendEmail(job); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			delivered = true
		}
	}

	if wantPush && job.PushEnabled {
		if err := n.sendPush(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("push: %w", err))
		} else {
			delivered = true
		}
	}

	if delivered {
		return nil
	}
	if len(errs) == 0 {
		return ErrNoChannel
	}
	return errors.Join(errs...)
}

func (n *Notifier) sendEmail(job DeliveryJob) error {
	if n.cfg.MailUsername == "" {
		return fmt.Errorf("mail is not configured")
	}

	subject := fmt.Sprintf("Alert cenowy: %s", job.ItemName)
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		n.cfg.MailFrom, job.UserEmail, subject, job.Notification.Message)

	addr := fmt.Sprintf("%s:%d", n.cfg.MailHost, n.cfg.MailPort)
	auth := smtp.PlainAuth("", n.cfg.MailUsername, n.cfg.MailPassword, n.cfg.MailHost)
	return smtp.SendMail(addr, auth, n.cfg.MailFrom, []string{job.UserEmail}, []byte(body))
}

// sendPush tries the user's webhook first, then a Discord DM. Either one
// landing counts as delivered.
func (n *Notifier) sendPush(ctx context.Context, job DeliveryJob) error {
	var delivered bool
	var errs []error

	webhookEnabled, _ := n.settings.GetForUser(ctx, job.UserID, "discord_webhook_enabled", "true")
	if webhookEnabled != "false" {
		webhookURL, err := n.settings.GetForUser(ctx, job.UserID, "discord_webhook_url", "")
		if err == nil && webhookURL != "" {
			if err := n.sendWebhook(ctx, webhookURL, job); err != nil {
				errs = append(errs, fmt.Errorf("webhook: %w", err))
			} else {
				delivered = true
			}
		}
	}

	dmEnabled, _ := n.settings.GetForUser(ctx, job.UserID, "discord_dm_enabled", "true")
	if dmEnabled != "false" && job.DiscordID != nil && *job.DiscordID != "" && n.discord != nil {
		if err := n.sendDM(job); err != nil {
			errs = append(errs, fmt.Errorf("dm: %w", err))
		} else {
			delivered = true
		}
	}

	if delivered {
		return nil
	}
	if len(errs) == 0 {
		return ErrNoChannel
	}
	return errors.Join(errs...)
}

func (n *Notifier) buildEmbed(job DeliveryJob) map[string]interface{} {
	return map[string]interface{}{
		"title": fmt.Sprintf("🎯 Alert cenowy: %s", job.ItemName),
		"color": 0xFFA500,
		"fields": []map[string]interface{}{
			{"name": "Cena", "value": fmt.Sprintf("%.2f$", job.Notification.TriggeredPrice), "inline": true},
			{"name": "Wiadomość", "value": job.Notification.Message, "inline": false},
		},
		"footer":    map[string]interface{}{"text": "CS2 Tracker"},
		"timestamp": job.Notification.TriggeredAt.Format(time.RFC3339),
	}
}

func (n *Notifier) sendWebhook(ctx context.Context, webhookURL string, job DeliveryJob) error {
	payload := map[string]interface{}{
		"content": job.Notification.Message,
		"embeds":  []interface{}{n.buildEmbed(job)},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (n *Notifier) sendDM(job DeliveryJob) error {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🎯 Alert cenowy: %s", job.ItemName),
		Color: 0xFFA500,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Cena", Value: fmt.Sprintf("%.2f$", job.Notification.TriggeredPrice), Inline: true},
			{Name: "Wiadomość", Value: job.Notification.Message, Inline: false},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "CS2 Tracker"},
		Timestamp: job.Notification.TriggeredAt.Format(time.RFC3339),
	}

	channel, err := n.discord.UserChannelCreate(*job.DiscordID)
	if err != nil {
		log.Error().Err(err).Str("discord_id", *job.DiscordID).Msg("Failed to create DM channel")
		return err
	}

	_, err = n.discord.ChannelMessageSendComplex(channel.ID, &discordgo.MessageSend{
		Content: job.Notification.Message,
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		log.Error().Err(err).Str("discord_id", *job.DiscordID).Msg("Failed to send DM message")
	}
	return err
}
