package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leadrelay/leadrelay/internal/bots"
	"github.com/leadrelay/leadrelay/internal/leads"
	"github.com/leadrelay/leadrelay/internal/wa"
)

const (
	// apologyReply is the fixed customer-facing fallback when reply
	// generation fails. Internal failures never reach the customer.
	apologyReply = "Sorry, we're having trouble replying right now. A member of our team will get back to you shortly."

	replyTemperature = 0.7
)

// BotResolver maps a channel identity to its bot configuration.
type BotResolver interface {
	Resolve(ctx context.Context, instance string) (bots.Bot, error)
}

// Gateway generates the customer reply.
type Gateway interface {
	Complete(ctx context.Context, model, prompt string, temperature float64) (string, error)
}

// Extractor produces structured lead fields; it never fails.
type Extractor interface {
	Extract(ctx context.Context, model, message, businessContext string) leads.Fields
}

// Store is the staging store surface the pipeline drives.
type Store interface {
	Insert(ctx context.Context, botID, instance string, fields leads.Fields, raw json.RawMessage) (leads.StagedLead, error)
	GetByID(ctx context.Context, id string) (leads.StagedLead, error)
	DeleteByID(ctx context.Context, id string) error
}

// SheetAppender delivers one lead row to the spreadsheet sink. A nil
// appender means the sink is not configured.
type SheetAppender interface {
	Append(ctx context.Context, row []string) error
}

// TextSender delivers outbound messages: the customer reply and the sales
// notification.
type TextSender interface {
	SendText(ctx context.Context, instance, number, text string) error
}

// NotifyConfig names the sales channel and destination. Either value empty
// disables notification delivery.
type NotifyConfig struct {
	SalesInstance string
	SalesNumber   string
}

// Outcome records every state's result for one pipeline run. The cleanup
// decision reads these values; nothing is signaled through swallowed
// errors.
type Outcome struct {
	BotID     string `json:"bot_id"`
	Reply     string `json:"reply"`
	Staged    bool   `json:"staged"`
	StagedID  string `json:"staged_id,omitempty"`
	SheetOK   bool   `json:"sheet_ok"`
	NotifyOK  bool   `json:"notify_ok"`
	Cleaned   bool   `json:"cleaned"`
	ReplySent bool   `json:"reply_sent"`
}

// RetryResult reports an operator-triggered redelivery.
type RetryResult struct {
	SheetOK  bool `json:"sheet_ok"`
	NotifyOK bool `json:"notify_ok"`
	Deleted  bool `json:"deleted"`
}

// Pipeline orchestrates one inbound message through reply generation,
// extraction, staging, delivery, cleanup, and response. Each inbound
// message runs independently; the store is the only shared state.
type Pipeline struct {
	bots      BotResolver
	gateway   Gateway
	extractor Extractor
	store     Store
	sheet     SheetAppender
	sender    TextSender
	notify    NotifyConfig
	logger    *slog.Logger
}

// New creates a delivery pipeline. sheet may be nil when the spreadsheet
// sink is not configured.
func New(log *slog.Logger, botResolver BotResolver, gateway Gateway, extractor Extractor, store Store, sheet SheetAppender, sender TextSender, notify NotifyConfig) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		bots:      botResolver,
		gateway:   gateway,
		extractor: extractor,
		store:     store,
		sheet:     sheet,
		sender:    sender,
		notify:    notify,
		logger:    log.With(slog.String("service", "pipeline")),
	}
}

// Handle runs the full pipeline for one inbound message. Only the bot
// resolution step is fatal; every later state degrades locally and the
// customer reply is always attempted.
func (p *Pipeline) Handle(ctx context.Context, msg wa.InboundMessage) (Outcome, error) {
	bot, err := p.bots.Resolve(ctx, msg.Instance)
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve bot: %w", err)
	}
	out := Outcome{BotID: bot.ID}

	out.Reply = p.generateReply(ctx, bot, msg.Text)

	fields := p.extractor.Extract(ctx, bot.Model, msg.Text, bot.ContextJSON())

	staged, err := p.store.Insert(ctx, bot.ID, msg.Instance, fields, msg.Raw)
	if err != nil {
		// The lead still flows to the delivery legs; there is just no
		// recoverable record if they fail.
		p.logger.Error("staging insert failed", slog.String("instance", msg.Instance), slog.Any("error", err))
	} else {
		out.Staged = true
		out.StagedID = staged.ID
	}

	out.SheetOK = p.deliverSheet(ctx, fields)
	out.NotifyOK = p.deliverNotify(ctx, fields)

	if out.Staged && out.SheetOK && out.NotifyOK {
		if err := p.store.DeleteByID(ctx, staged.ID); err != nil {
			// Leave the record; a later retry may deliver twice, which the
			// at-least-once sinks tolerate.
			p.logger.Warn("staged lead cleanup failed", slog.String("staged_id", staged.ID), slog.Any("error", err))
		} else {
			out.Cleaned = true
		}
	}

	if err := p.sender.SendText(ctx, msg.Instance, msg.Sender, out.Reply); err != nil {
		p.logger.Warn("customer reply failed", slog.String("instance", msg.Instance), slog.Any("error", err))
	} else {
		out.ReplySent = true
	}

	return out, nil
}

// Retry re-runs the delivery legs and cleanup for an already staged lead.
// It does not re-extract or regenerate a reply.
func (p *Pipeline) Retry(ctx context.Context, stagedID string) (RetryResult, error) {
	lead, err := p.store.GetByID(ctx, stagedID)
	if err != nil {
		return RetryResult{}, err
	}

	result := RetryResult{
		SheetOK:  p.deliverSheet(ctx, lead.Fields),
		NotifyOK: p.deliverNotify(ctx, lead.Fields),
	}
	if result.SheetOK && result.NotifyOK {
		if err := p.store.DeleteByID(ctx, lead.ID); err != nil {
			p.logger.Warn("staged lead cleanup failed", slog.String("staged_id", lead.ID), slog.Any("error", err))
		} else {
			result.Deleted = true
		}
	}
	return result, nil
}

func (p *Pipeline) generateReply(ctx context.Context, bot bots.Bot, text string) string {
	var b strings.Builder
	if contextDoc := bot.ContextJSON(); contextDoc != "" {
		fmt.Fprintf(&b, "Business context: %s\n\n", contextDoc)
	}
	b.WriteString("Reply to the customer message below in one short, friendly paragraph.\n\n")
	fmt.Fprintf(&b, "Customer message: %s", text)

	reply, err := p.gateway.Complete(ctx, bot.Model, b.String(), replyTemperature)
	if err != nil {
		p.logger.Warn("reply generation failed", slog.String("bot_id", bot.ID), slog.Any("error", err))
		return apologyReply
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return apologyReply
	}
	return reply
}

func (p *Pipeline) deliverSheet(ctx context.Context, fields leads.Fields) bool {
	if p.sheet == nil {
		return false
	}
	row := []string{
		time.Now().UTC().Format(time.RFC3339),
		fields.Name,
		fields.Phone,
		string(fields.Priority),
		string(fields.ContactMethod),
		fields.Notes,
	}
	if err := p.sheet.Append(ctx, row); err != nil {
		p.logger.Warn("sheet delivery failed", slog.Any("error", err))
		return false
	}
	return true
}

func (p *Pipeline) deliverNotify(ctx context.Context, fields leads.Fields) bool {
	if p.notify.SalesInstance == "" || p.notify.SalesNumber == "" {
		return false
	}
	if err := p.sender.SendText(ctx, p.notify.SalesInstance, p.notify.SalesNumber, formatNotification(fields)); err != nil {
		p.logger.Warn("sales notification failed", slog.Any("error", err))
		return false
	}
	return true
}

func formatNotification(fields leads.Fields) string {
	return fmt.Sprintf("New lead received\nName: %s\nPhone: %s\nPriority: %s\nContact method: %s\nNotes: %s",
		orDash(fields.Name),
		orDash(fields.Phone),
		string(fields.Priority),
		string(fields.ContactMethod),
		orDash(fields.Notes),
	)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
