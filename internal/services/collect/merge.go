package collect

import (
	"sort"

	"github.com/memfill/memfill/internal/domain"
)

// Merge combines per-frame detection results into one page-level result.
// Forms from successful frames are concatenated, main frame first, then
// child frames by ascending depth; field counts are summed over
// successful frames only. The main frame's website context wins when
// present, else the first successful frame's. Field rects are shifted
// into top-document coordinates using each frame's accumulated offset.
func Merge(results []domain.DetectResult) domain.DetectResult {
	ordered := make([]domain.DetectResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].FrameInfo.IsMainFrame != ordered[j].FrameInfo.IsMainFrame {
			return ordered[i].FrameInfo.IsMainFrame
		}
		return ordered[i].FrameInfo.Depth < ordered[j].FrameInfo.Depth
	})

	merged := domain.DetectResult{
		FrameInfo: domain.FrameInfo{IsMainFrame: true},
	}
	for _, res := range ordered {
		if !res.Success {
			continue
		}
		merged.Success = true
		merged.TotalFields += res.TotalFields

		offset := res.FrameInfo.Offset
		for _, form := range res.Forms {
			if offset.X != 0 || offset.Y != 0 {
				for i := range form.Fields {
					form.Fields[i].Rect = form.Fields[i].Rect.Offset(offset.X, offset.Y)
				}
			}
			merged.Forms = append(merged.Forms, form)
		}

		if res.WebsiteContext != nil {
			if res.FrameInfo.IsMainFrame || merged.WebsiteContext == nil {
				merged.WebsiteContext = res.WebsiteContext
			}
		}
		if res.FrameInfo.IsMainFrame {
			merged.FrameInfo = res.FrameInfo
		}
	}

	if !merged.Success {
		merged.Error = "no frames responded"
	}
	return merged
}
