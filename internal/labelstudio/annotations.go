package labelstudio

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"transcript-hub/internal/domain"
)

// ParseAnnotations extracts corrected segments from a task's
// annotation list. Only the most recent non-cancelled annotation
// counts: each review pass supersedes earlier ones. An empty return
// means no usable review exists yet.
func ParseAnnotations(annotations []Annotation) []domain.Segment {
	active := lo.Filter(annotations, func(a Annotation, _ int) bool {
		return !a.WasCancelled
	})
	if len(active) == 0 {
		return nil
	}

	// The platform lists annotations in creation order, but sort by
	// timestamp when present so reordered responses still pick the
	// latest pass.
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.CreatedAt == nil || b.CreatedAt == nil {
			return false
		}
		return a.CreatedAt.Before(*b.CreatedAt)
	})
	latest := active[len(active)-1]

	var segments []domain.Segment
	for i, result := range latest.Result {
		if result.Type != "textarea" || result.FromName != transcriptionFromName {
			continue
		}
		if result.Value.Start == nil {
			continue
		}

		id := result.ID
		if id == "" {
			id = fmt.Sprintf("s%d", i+1)
		}
		end := 0.0
		if result.Value.End != nil {
			end = *result.Value.End
		}
		segments = append(segments, domain.Segment{
			ID:    id,
			Start: *result.Value.Start,
			End:   end,
			Text:  result.Value.Text.First(),
		})
	}
	return segments
}
