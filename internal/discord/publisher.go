// Package discord posts finished artifacts to a text channel.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/textcast-go/internal/queue"
)

// MaxUploadBytes is the attachment limit for bots without boosted uploads.
const MaxUploadBytes = 25 << 20

var (
	// ErrTooLarge is returned when an artifact exceeds MaxUploadBytes.
	ErrTooLarge = errors.New("artifact exceeds discord upload limit")
	// ErrUploadFailed is returned when Discord rejects the upload.
	ErrUploadFailed = errors.New("discord upload failed")
)

// Publisher uploads queued artifacts to one channel.
type Publisher struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// NewPublisher creates a publisher authenticated with a bot token. Uploads
// use the REST API only; no gateway connection is opened.
func NewPublisher(token, channelID string, logger *slog.Logger) (*Publisher, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Publisher{session: session, channelID: channelID, logger: logger}, nil
}

// Publish uploads job.Data as an attachment. It satisfies queue.Handler.
func (p *Publisher) Publish(ctx context.Context, job *queue.PublishJob) error {
	if len(job.Data) > MaxUploadBytes {
		return fmt.Errorf("%w: %s", ErrTooLarge, humanize.IBytes(uint64(len(job.Data))))
	}

	msg, err := p.session.ChannelFileSendWithMessage(
		p.channelID,
		Caption(job),
		job.Filename,
		bytes.NewReader(job.Data),
		discordgo.WithContext(ctx),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	p.logger.Info("artifact posted",
		"request_id", job.RequestID,
		"channel_id", p.channelID,
		"message_id", msg.ID,
	)
	return nil
}

// Close releases the session.
func (p *Publisher) Close() error {
	return p.session.Close()
}

// Caption describes job in the message that carries the attachment.
func Caption(job *queue.PublishJob) string {
	if job.Message != "" {
		return job.Message
	}
	return fmt.Sprintf("%s ready: %s (%s, request %s)",
		job.Kind, job.Filename, humanize.Bytes(uint64(len(job.Data))), job.RequestID)
}
