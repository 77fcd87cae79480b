package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/pennybridge/mnemon/pkg/domain/model"
	"github.com/pennybridge/mnemon/pkg/domain/types"
)

func validRecord() *model.MemoryRecord {
	return &model.MemoryRecord{
		ID:         model.NewRecordID(),
		Namespace:  types.NewNamespace("user-123", "semantic"),
		Category:   types.CategoryPersonal,
		Summary:    "User's dog Luna is 3 years old",
		Embedding:  make([]float32, model.EmbeddingDimension),
		Importance: 0.6,
	}
}

func TestMemoryRecordValidate(t *testing.T) {
	t.Run("valid record passes", func(t *testing.T) {
		gt.NoError(t, validRecord().Validate())
	})

	t.Run("empty summary fails", func(t *testing.T) {
		r := validRecord()
		r.Summary = ""
		gt.Error(t, r.Validate())
	})

	t.Run("summary over the rune bound fails", func(t *testing.T) {
		r := validRecord()
		r.Summary = strings.Repeat("a", model.MaxSummaryRunes+1)
		gt.Error(t, r.Validate())
	})

	t.Run("importance outside [0,1] fails", func(t *testing.T) {
		r := validRecord()
		r.Importance = 1.1
		gt.Error(t, r.Validate())
	})

	t.Run("invalid category fails", func(t *testing.T) {
		r := validRecord()
		r.Category = "GOSSIP"
		gt.Error(t, r.Validate())
	})
}

func TestEpisodicRecordStampDate(t *testing.T) {
	t.Run("stamps in the given timezone", func(t *testing.T) {
		loc, err := time.LoadLocation("America/New_York")
		gt.NoError(t, err).Required()

		e := &model.EpisodicRecord{
			Namespace: types.NewNamespace("user-123", "episodic"),
			Summary:   "Reviewed the budget",
		}
		// 01:30 UTC is still the previous day in New York
		e.StampDate(time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC), loc)

		gt.Value(t, e.DateISO).Equal("2026-03-09")
		gt.Number(t, e.Year).Equal(2026)
		gt.Number(t, e.ISOWeek).Equal(11)
		gt.NoError(t, e.Validate())
	})

	t.Run("validate requires a stamped date", func(t *testing.T) {
		e := &model.EpisodicRecord{
			Namespace: types.NewNamespace("user-123", "episodic"),
			Summary:   "Reviewed the budget",
		}
		gt.Error(t, e.Validate())
	})
}

func TestCosineSimilarity(t *testing.T) {
	a := make([]float32, model.EmbeddingDimension)
	b := make([]float32, model.EmbeddingDimension)
	a[0] = 1
	b[0] = 1

	t.Run("identical unit vectors score 1", func(t *testing.T) {
		gt.Value(t, model.CosineSimilarity(a, b)).Equal(1.0)
	})

	t.Run("orthogonal vectors score 0", func(t *testing.T) {
		c := make([]float32, model.EmbeddingDimension)
		c[1] = 1
		gt.Value(t, model.CosineSimilarity(a, c)).Equal(0.0)
	})

	t.Run("mismatched lengths score 0", func(t *testing.T) {
		gt.Value(t, model.CosineSimilarity(a, a[:10])).Equal(0.0)
	})

	t.Run("clamp maps negatives to 0", func(t *testing.T) {
		gt.Value(t, model.ClampSimilarity(-0.3)).Equal(0.0)
		gt.Value(t, model.ClampSimilarity(0.42)).Equal(0.42)
		gt.Value(t, model.ClampSimilarity(1.7)).Equal(1.0)
	})
}
