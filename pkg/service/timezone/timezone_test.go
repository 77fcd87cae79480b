package timezone_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/pennybridge/mnemon/pkg/domain/types"
	"github.com/pennybridge/mnemon/pkg/service/timezone"
)

func TestResolver(t *testing.T) {
	t.Run("registered owner resolves to their zone", func(t *testing.T) {
		r := timezone.New()
		gt.NoError(t, r.Set("user-123", "Asia/Tokyo")).Required()

		loc := r.Resolve(context.Background(), types.NewNamespace("user-123", "episodic"))
		gt.Value(t, loc.String()).Equal("Asia/Tokyo")
	})

	t.Run("zone is shared across the owner's namespaces", func(t *testing.T) {
		r := timezone.New()
		gt.NoError(t, r.Set("user-123", "Europe/Berlin")).Required()

		semantic := r.Resolve(context.Background(), types.NewNamespace("user-123", "semantic"))
		episodic := r.Resolve(context.Background(), types.NewNamespace("user-123", "episodic"))
		gt.Value(t, semantic).Equal(episodic)
	})

	t.Run("unknown owner falls back to UTC", func(t *testing.T) {
		r := timezone.New()
		loc := r.Resolve(context.Background(), types.NewNamespace("stranger", "semantic"))
		gt.Value(t, loc).Equal(time.UTC)
	})

	t.Run("rejects unknown zone names", func(t *testing.T) {
		r := timezone.New()
		gt.Error(t, r.Set("user-123", "Mars/Olympus"))
	})
}
