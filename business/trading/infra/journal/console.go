package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/flashguard/business/trading/domain"
)

const rule = "================================================================================"

// Console prints approved decisions as a block and rejections as a line.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console journal on stdout.
func NewConsole() *Console {
	return NewConsoleWriter(os.Stdout)
}

// NewConsoleWriter creates a console journal on w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Record writes d.
func (c *Console) Record(_ context.Context, d domain.Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !d.Approved {
		_, err := fmt.Fprintf(c.out, "[%s] REJECTED %s at %s: %s\n",
			d.DecidedAt.Format("15:04:05"), short(d.OpportunityID), d.Stage, strings.Join(d.Reasons, "; "))
		return err
	}

	mode := "SUBMITTED"
	if d.DryRun {
		mode = "DRY RUN"
	}
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "TRADE APPROVED (%s)\n", mode)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Opportunity:    %s\n", d.OpportunityID)
	fmt.Fprintf(c.out, "Decided:        %s (%s)\n", d.DecidedAt.Format(time.RFC3339), d.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(c.out, "Amount:         $%s\n", d.Amount.StringFixed(2))
	fmt.Fprintf(c.out, "Net profit:     $%s (confidence %.2f)\n", d.NetProfit.StringFixed(2), d.Confidence)
	fmt.Fprintf(c.out, "Safety:         %s\n", d.SafetyLevel)
	for _, w := range d.Warnings {
		fmt.Fprintf(c.out, "  ! %s\n", w)
	}
	if d.Relay != "" {
		fmt.Fprintf(c.out, "Relay:          %s %s\n", d.Relay, d.BundleHash)
	}
	_, err := fmt.Fprintln(c.out, rule)
	return err
}

// Close is a no-op.
func (c *Console) Close() error {
	return nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
