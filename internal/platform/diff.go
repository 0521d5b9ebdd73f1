package platform

import (
	"bytes"
	"fmt"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/maraichr/reviewgate/pkg/models"
)

// FilesFromUnifiedDiff splits a multi-file git diff into per-file changes.
// Each FileChange carries its own patch so later stages can inspect hunks.
func FilesFromUnifiedDiff(raw []byte) ([]models.FileChange, error) {
	files, _, err := gitdiff.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse unified diff: %w", err)
	}

	out := make([]models.FileChange, 0, len(files))
	for _, f := range files {
		fc := models.FileChange{
			Filename: f.NewName,
			Status:   models.FileModified,
		}
		switch {
		case f.IsNew:
			fc.Status = models.FileAdded
		case f.IsDelete:
			fc.Status = models.FileRemoved
			fc.Filename = f.OldName
		case f.IsRename:
			fc.Status = models.FileRenamed
			fc.PreviousName = f.OldName
		}
		for _, frag := range f.TextFragments {
			fc.Additions += int(frag.LinesAdded)
			fc.Deletions += int(frag.LinesDeleted)
		}
		if !f.IsBinary {
			fc.Patch = f.String()
		}
		out = append(out, fc)
	}
	return out, nil
}
