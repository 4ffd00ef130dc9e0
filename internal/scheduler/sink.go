package scheduler

import (
	"context"
	"fmt"
	"io"

	"github.com/MrSnakeDoc/hasu/internal/domain"
)

// Output is what a successful pass hands to sinks.
type Output struct {
	Pass     uint64
	Document domain.RenderDocument
	Rendered []byte
}

// Sink receives every successful render in addition to the main writer.
// Sink failures are logged and never fail the pass.
type Sink interface {
	Name() string
	Emit(ctx context.Context, out Output) error
}

// writeRendered writes the rendered text to w, ending with a newline.
func writeRendered(w io.Writer, rendered []byte) error {
	if _, err := w.Write(rendered); err != nil {
		return fmt.Errorf("failed to write rendered config: %w", err)
	}
	if len(rendered) > 0 && rendered[len(rendered)-1] != '\n' {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("failed to write rendered config: %w", err)
		}
	}
	return nil
}
