package timeline

import (
	"time"

	"editortrace/internal/core/model"
)

// event is one element of the merged import+operation stream.
type event struct {
	imp *model.AssetImportRecord
	op  *model.OperationRecord
}

func (e event) line() int {
	if e.imp != nil {
		return e.imp.LineNumber
	}
	return e.op.LineNumber
}

// mergeEvents two-pointer-merges the line-sorted import and operation
// streams, putting imports first on equal line numbers.
func mergeEvents(imports []model.AssetImportRecord, ops []model.OperationRecord) []event {
	merged := make([]event, 0, len(imports)+len(ops))
	i, j := 0, 0
	for i < len(imports) && j < len(ops) {
		if imports[i].LineNumber <= ops[j].LineNumber {
			merged = append(merged, event{imp: &imports[i]})
			i++
		} else {
			merged = append(merged, event{op: &ops[j]})
			j++
		}
	}
	for ; i < len(imports); i++ {
		merged = append(merged, event{imp: &imports[i]})
	}
	for ; j < len(ops); j++ {
		merged = append(merged, event{op: &ops[j]})
	}
	return merged
}

// sequenceItem is either an import chunk or a single operation, in stream
// order.
type sequenceItem struct {
	chunk *Chunk
	op    *model.OperationRecord
}

// buildSequence groups import events into chunks: a category change always
// breaks, a same-category line gap above gapLines breaks, and an operation
// finalizes the open chunk before taking its own slot.
func buildSequence(merged []event, gapLines int) []sequenceItem {
	var seq []sequenceItem
	var open []*model.AssetImportRecord

	flush := func() {
		if len(open) == 0 {
			return
		}
		seq = append(seq, sequenceItem{chunk: buildChunk(open)})
		open = nil
	}

	for _, ev := range merged {
		if ev.op != nil {
			flush()
			seq = append(seq, sequenceItem{op: ev.op})
			continue
		}

		imp := ev.imp
		if len(open) > 0 {
			prev := open[len(open)-1]
			if imp.AssetCategory != prev.AssetCategory || imp.LineNumber-prev.LineNumber > gapLines {
				flush()
			}
		}
		open = append(open, imp)
	}
	flush()
	return seq
}

func buildChunk(members []*model.AssetImportRecord) *Chunk {
	c := &Chunk{
		Category:   members[0].AssetCategory,
		StartLine:  members[0].LineNumber,
		EndLine:    members[len(members)-1].LineNumber,
		EventCount: len(members),
		FirstAsset: members[0].AssetName,
	}
	for _, m := range members {
		c.ActualTimeMs += m.ImportTimeMs
		if m.StartTime != nil && (c.StartTime == nil || m.StartTime.Before(*c.StartTime)) {
			c.StartTime = m.StartTime
		}
		if m.EndTime != nil && (c.EndTime == nil || m.EndTime.After(*c.EndTime)) {
			c.EndTime = m.EndTime
		}
	}

	c.DurationMs = c.ActualTimeMs
	if c.StartTime != nil && c.EndTime != nil {
		wall := float64(c.EndTime.Sub(*c.StartTime)) / float64(time.Millisecond)
		if wall > c.DurationMs {
			c.DurationMs = wall
		}
	}
	return c
}
