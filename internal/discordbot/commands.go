package discordbot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kamilgrz/cs2-tracker/internal/models"
)

// BotHandler talks to the tracker's internal API on behalf of Discord users.
// Every request carries the shared bot token; users are resolved by their
// Discord ID, so only linked accounts can manage alerts from here.
type BotHandler struct {
	apiBaseURL string
	botToken   string
	httpClient *http.Client
}

func NewBotHandler(apiBaseURL, botToken string) *BotHandler {
	return &BotHandler{
		apiBaseURL: apiBaseURL,
		botToken:   botToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

var commands = []*discordgo.ApplicationCommand{
	{
		Name:        "price",
		Description: "Check the current price of a CS2 item",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "item",
				Description: "Full market name, e.g. AK-47 | Redline (Field-Tested)",
				Required:    true,
			},
		},
	},
	{
		Name:        "chart",
		Description: "Show a price history chart for a CS2 item",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "item",
				Description: "Full market name",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "days",
				Description: "History window in days (default 7)",
				Required:    false,
			},
		},
	},
	{
		Name:        "alerts",
		Description: "List your price alerts",
	},
	{
		Name:        "alert_add",
		Description: "Add a price alert for an item",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "item",
				Description: "Full market name",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "condition",
				Description: "Trigger when price is above, below or near the target",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Above", Value: models.ConditionAbove},
					{Name: "Below", Value: models.ConditionBelow},
					{Name: "Equals", Value: models.ConditionEquals},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionNumber,
				Name:        "price",
				Description: "Target price in USD",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "repeat",
				Description: "Re-arm interval in hours (0 = fire once)",
				Required:    false,
			},
		},
	},
	{
		Name:        "alert_remove",
		Description: "Remove a price alert by its ID (see /alerts)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "id",
				Description: "Alert ID",
				Required:    true,
			},
		},
	},
	{
		Name:        "help",
		Description: "Display help information about CS2 Tracker Bot",
	},
}

func (h *BotHandler) RegisterHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		switch i.ApplicationCommandData().Name {
		case "price":
			h.handlePrice(s, i)
		case "chart":
			h.handleChart(s, i)
		case "alerts":
			h.handleAlerts(s, i)
		case "alert_add":
			h.handleAlertAdd(s, i)
		case "alert_remove":
			h.handleAlertRemove(s, i)
		case "help":
			h.handleHelp(s, i)
		}
	})
}

func (h *BotHandler) RegisterCommands(s *discordgo.Session, appID, guildID string) ([]*discordgo.ApplicationCommand, error) {
	registeredCommands := make([]*discordgo.ApplicationCommand, len(commands))
	var err error
	for idx, cmd := range commands {
		registeredCommands[idx], err = s.ApplicationCommandCreate(appID, guildID, cmd)
		if err != nil {
			return nil, fmt.Errorf("cannot create '%v' command: %w", cmd.Name, err)
		}
	}
	return registeredCommands, nil
}

func (h *BotHandler) apiGet(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, h.apiBaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Bot-Token", h.botToken)
	return h.httpClient.Do(req)
}

func (h *BotHandler) apiDo(method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(method, h.apiBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Bot-Token", h.botToken)
	req.Header.Set("Content-Type", "application/json")
	return h.httpClient.Do(req)
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func commandOptions(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		opts[opt.Name] = opt
	}
	return opts
}

func editText(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &text})
}

func deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

const notLinkedMessage = "You don't have an account linked. Login to the dashboard and link your Discord account first."

func (h *BotHandler) handlePrice(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferReply(s, i, false)

	opts := commandOptions(i)
	itemName := opts["item"].StringValue()

	resp, err := h.apiGet("/api/internal/prices/latest?name=" + url.QueryEscape(itemName))
	if err != nil {
		editText(s, i, "Error fetching data from API.")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		editText(s, i, fmt.Sprintf("No price data for **%s** yet. It gets tracked once someone sets an alert or owns it.", itemName))
		return
	}
	if resp.StatusCode != http.StatusOK {
		editText(s, i, "Error fetching data from API.")
		return
	}

	var point models.PricePoint
	if err := json.NewDecoder(resp.Body).Decode(&point); err != nil {
		editText(s, i, "Error decoding API response.")
		return
	}

	p := message.NewPrinter(language.Polish)
	embed := &discordgo.MessageEmbed{
		Title: point.MarketName,
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Cena", Value: p.Sprintf("%.2f$", point.Price), Inline: true},
			{Name: "Źródło", Value: point.Source, Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Last updated: %s", point.Time.Format("2006-01-02 15:04:05 UTC")),
		},
	}

	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
}

func (h *BotHandler) handleChart(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferReply(s, i, false)

	opts := commandOptions(i)
	itemName := opts["item"].StringValue()
	days := int64(7)
	if opt, ok := opts["days"]; ok {
		days = opt.IntValue()
	}

	path := fmt.Sprintf("/api/internal/prices/chart?name=%s&days=%d", url.QueryEscape(itemName), days)
	resp, err := h.apiGet(path)
	if err != nil {
		editText(s, i, "Error fetching chart from API.")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		editText(s, i, fmt.Sprintf("Not enough price history for **%s** to draw a chart.", itemName))
		return
	}
	if resp.StatusCode != http.StatusOK {
		editText(s, i, "Error fetching chart from API.")
		return
	}

	png, err := io.ReadAll(resp.Body)
	if err != nil {
		editText(s, i, "Error reading chart data.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: itemName,
		Color: 0x5865F2,
		Image: &discordgo.MessageEmbedImage{URL: "attachment://chart.png"},
	}
	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{
			{Name: "chart.png", ContentType: "image/png", Reader: bytes.NewReader(png)},
		},
	})
}

type botAlert struct {
	models.PriceAlert
	Status struct {
		Status      string `json:"status"`
		Description string `json:"description"`
	} `json:"status_info"`
}

func (h *BotHandler) handleAlerts(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferReply(s, i, true)

	discordID := interactionUserID(i)
	resp, err := h.apiGet("/api/internal/users/" + discordID + "/alerts")
	if err != nil {
		editText(s, i, "Internal API error.")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		editText(s, i, notLinkedMessage)
		return
	}

	var alerts []botAlert
	if err := json.NewDecoder(resp.Body).Decode(&alerts); err != nil || len(alerts) == 0 {
		editText(s, i, "You currently have no alerts.")
		return
	}

	p := message.NewPrinter(language.Polish)
	embed := &discordgo.MessageEmbed{
		Title: "Your Price Alerts",
		Color: 0x5865F2,
	}

	for _, a := range alerts {
		repeat := "once"
		if a.RepeatInterval > 0 {
			repeat = fmt.Sprintf("every %dh", a.RepeatInterval)
		}
		value := p.Sprintf("**%s %.2f$** (%s), fires %s\n%s",
			a.Condition, a.TargetPrice, a.Status.Description, repeat,
			fmt.Sprintf("ID: %d", a.ID))

		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   a.ItemName,
			Value:  value,
			Inline: true,
		})
	}

	s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Embeds: &[]*discordgo.MessageEmbed{embed},
	})
}

func (h *BotHandler) handleAlertAdd(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferReply(s, i, true)

	opts := commandOptions(i)
	itemName := opts["item"].StringValue()
	condition := opts["condition"].StringValue()
	price := opts["price"].FloatValue()
	repeat := int64(0)
	if opt, ok := opts["repeat"]; ok {
		repeat = opt.IntValue()
	}

	payload := map[string]interface{}{
		"item_name":       itemName,
		"market_name":     itemName,
		"condition":       condition,
		"target_price":    price,
		"repeat_interval": repeat,
		"is_active":       true,
	}
	body, _ := json.Marshal(payload)

	discordID := interactionUserID(i)
	resp, err := h.apiDo(http.MethodPost, "/api/internal/users/"+discordID+"/alerts", body)
	if err != nil {
		editText(s, i, "Internal API error.")
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		p := message.NewPrinter(language.Polish)
		editText(s, i, p.Sprintf("✅ Alert added for **%s** when price goes %s %.2f$", itemName, condition, price))
	case http.StatusNotFound:
		editText(s, i, notLinkedMessage)
	case http.StatusUnprocessableEntity:
		msg, _ := io.ReadAll(resp.Body)
		editText(s, i, "Invalid alert: "+string(msg))
	default:
		editText(s, i, "Failed to save the alert.")
	}
}

func (h *BotHandler) handleAlertRemove(s *discordgo.Session, i *discordgo.InteractionCreate) {
	deferReply(s, i, true)

	opts := commandOptions(i)
	alertID := opts["id"].IntValue()

	discordID := interactionUserID(i)
	path := fmt.Sprintf("/api/internal/users/%s/alerts/%d", discordID, alertID)
	resp, err := h.apiDo(http.MethodDelete, path, nil)
	if err != nil {
		editText(s, i, "Internal API error.")
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		editText(s, i, fmt.Sprintf("🗑️ Alert %d removed.", alertID))
	case http.StatusNotFound:
		editText(s, i, "Alert not found (check the ID with /alerts).")
	default:
		editText(s, i, "Failed to remove the alert.")
	}
}

func (h *BotHandler) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title:       "CS2 Tracker Bot Help",
		Description: "Track CS2 item prices and manage price alerts from Discord.",
		Color:       0x00ff00,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "/price <item>",
				Value: "Show the latest tracked price for a market name.",
			},
			{
				Name:  "/chart <item> [days]",
				Value: "Render the price history as a chart image.",
			},
			{
				Name:  "/alerts",
				Value: "List your alerts with their IDs and statuses.",
			},
			{
				Name:  "/alert_add <item> <condition> <price> [repeat]",
				Value: "Create an alert. Alerts made here notify you on Discord.",
			},
			{
				Name:  "/alert_remove <id>",
				Value: "Delete an alert by its ID.",
			},
		},
	}
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}
