// Package service turns print requests into published receipts.
package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/receipt-printer/internal/clock"
	"github.com/iliyamo/receipt-printer/internal/queue"
	"github.com/iliyamo/receipt-printer/internal/receipt"
	"github.com/iliyamo/receipt-printer/internal/sink"
)

// ErrNotDelivered means the receipt rendered fine but the sink refused it.
var ErrNotDelivered = errors.New("receipt rendered but not delivered")

// RawDateLayout is appended to raw prints that ask for a date line.
const RawDateLayout = "2006-01-02 15:04"

// TestTitle and TestLines make up the settings test print.
var (
	TestTitle = "TEST"
	TestLines = []string{"Wasser trinken", "Schriftstelle lesen", "Sport – 20 Min"}
)

// StyleSource yields the effective style for one request.
type StyleSource interface {
	Snapshot() (receipt.Style, error)
}

// TemplateJob is a titled task list.
type TemplateJob struct {
	Title        string
	Lines        []string
	AddTimestamp bool
	Cut          bool
	Sender       string
}

// Printer renders, encodes and publishes receipts.
type Printer struct {
	Composer      *receipt.Composer
	Sink          sink.Sink
	Styles        StyleSource
	Clock         clock.Clock
	Width         int
	PaperWidthMM  int
	PaperHeightMM int
	Log           *logrus.Logger
}

// NewTicketID returns web-<unix ms>-<6 hex chars>.
func NewTicketID(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("web-%d-%x", now.UnixMilli(), id[:3])
}

// PrintTemplate prints a title plus lines and returns the ticket id.
func (p *Printer) PrintTemplate(ctx context.Context, j TemplateJob) (string, error) {
	st, err := p.Styles.Snapshot()
	if err != nil {
		return "", err
	}
	img, err := p.Composer.Render(receipt.Request{
		Title:        j.Title,
		Lines:        j.Lines,
		AddTimestamp: j.AddTimestamp,
		Sender:       j.Sender,
	}, p.Width, st)
	if err != nil {
		return "", err
	}
	return p.publish(ctx, img, j.Cut)
}

// RawLines splits text into receipt lines, optionally followed by a
// date line for now.
func RawLines(text string, addDate bool, now time.Time) []string {
	if addDate {
		text += "\n" + now.Format(RawDateLayout)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	// a trailing newline does not start another line
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// PrintRaw prints free text without title or timestamp. The paper is
// always cut.
func (p *Printer) PrintRaw(ctx context.Context, text string, addDate bool, sender string) (string, error) {
	return p.PrintTemplate(ctx, TemplateJob{
		Lines:  RawLines(text, addDate, p.Clock.Now()),
		Cut:    true,
		Sender: sender,
	})
}

// PrintPhoto prints photo under an optional title and subtitle.
func (p *Printer) PrintPhoto(ctx context.Context, photo image.Image, title, subtitle, sender string) (string, error) {
	st, err := p.Styles.Snapshot()
	if err != nil {
		return "", err
	}
	img, err := p.Composer.ComposeWithPhoto(photo, p.Width, st, title, subtitle, sender)
	if err != nil {
		return "", err
	}
	return p.publish(ctx, img, true)
}

// PrintTest prints a fixed sample with the current style.
func (p *Printer) PrintTest(ctx context.Context) (string, error) {
	return p.PrintTemplate(ctx, TemplateJob{
		Title:        TestTitle,
		Lines:        TestLines,
		AddTimestamp: true,
		Cut:          true,
	})
}

func (p *Printer) publish(ctx context.Context, img image.Image, cut bool) (string, error) {
	data, err := receipt.Encode(img)
	if err != nil {
		return "", err
	}
	job := queue.NewPNGJob(NewTicketID(p.Clock.Now()), data, p.PaperWidthMM, p.PaperHeightMM)
	if !cut {
		job.CutPaper = 0
	}
	if err := p.Sink.Publish(ctx, job); err != nil {
		p.Log.WithFields(logrus.Fields{
			"ticket_id": job.TicketID,
			"error":     err.Error(),
		}).Error("print job not delivered")
		return job.TicketID, fmt.Errorf("%w: %w", ErrNotDelivered, err)
	}
	p.Log.WithFields(logrus.Fields{
		"ticket_id": job.TicketID,
		"height_px": img.Bounds().Dy(),
		"bytes":     len(data),
	}).Info("print job published")
	return job.TicketID, nil
}
