package results

import (
	"context"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/codefionn/evalkit/internal/consts"
	"github.com/codefionn/evalkit/internal/fs"
)

var checklistMarkdown = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// ChecklistProgress counts the GFM task list boxes in markdown. Boxes inside
// code blocks are not counted.
func ChecklistProgress(markdown []byte) (done, total int) {
	doc := checklistMarkdown.Parser().Parse(text.NewReader(markdown))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if box, ok := n.(*extast.TaskCheckBox); ok {
			total++
			if box.IsChecked {
				done++
			}
		}
		return ast.WalkContinue, nil
	})
	return done, total
}

// ReadChecklist counts the checklist progress of a task directory.
func ReadChecklist(ctx context.Context, fsys fs.FileSystem, taskDir string) (done, total int, err error) {
	data, err := fsys.ReadFile(ctx, filepath.Join(taskDir, consts.ChecklistFile))
	if err != nil {
		return 0, 0, err
	}
	done, total = ChecklistProgress(data)
	return done, total, nil
}
