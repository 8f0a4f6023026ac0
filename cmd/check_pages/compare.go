package main

import (
	"fmt"
	"strings"

	"pdf-editor/internal/inspect"
)

type pageResult struct {
	page    int
	missing []string
	added   []inspect.Run
	err     error
}

type result struct {
	originalPages int
	editedPages   int
	pages         []pageResult
}

func (r result) complete() bool {
	if r.originalPages != r.editedPages {
		return false
	}
	for _, p := range r.pages {
		if p.err != nil || len(p.missing) > 0 {
			return false
		}
	}
	return true
}

// compare matches text runs page by page. A run counts as kept when the
// edited page has a run with the same text; overlays never move original
// content, but rotation normalization may change its coordinates.
func compare(original, edited *inspect.Document) result {
	res := result{originalPages: original.PageCount(), editedPages: edited.PageCount()}
	n := min(res.originalPages, res.editedPages)

	for i := 1; i <= n; i++ {
		pr := pageResult{page: i}
		before, err := original.Runs(i)
		if err != nil {
			pr.err = fmt.Errorf("original: %w", err)
			res.pages = append(res.pages, pr)
			continue
		}
		after, err := edited.Runs(i)
		if err != nil {
			pr.err = fmt.Errorf("edited: %w", err)
			res.pages = append(res.pages, pr)
			continue
		}

		remaining := make(map[string]int)
		for _, r := range after {
			remaining[r.Text]++
		}
		for _, r := range before {
			if remaining[r.Text] > 0 {
				remaining[r.Text]--
				continue
			}
			pr.missing = append(pr.missing, r.Text)
		}
		for _, r := range after {
			if remaining[r.Text] > 0 {
				remaining[r.Text]--
				pr.added = append(pr.added, r)
			}
		}
		res.pages = append(res.pages, pr)
	}
	return res
}

func (r result) format() string {
	var sb strings.Builder
	if r.originalPages != r.editedPages {
		sb.WriteString(fmt.Sprintf("✗ Page count differs: %d original, %d edited\n", r.originalPages, r.editedPages))
	} else {
		sb.WriteString(fmt.Sprintf("✓ Page count matches: %d\n", r.originalPages))
	}

	for _, p := range r.pages {
		switch {
		case p.err != nil:
			sb.WriteString(fmt.Sprintf("✗ Page %d: %v\n", p.page, p.err))
			continue
		case len(p.missing) > 0:
			sb.WriteString(fmt.Sprintf("✗ Page %d: %d original run(s) missing\n", p.page, len(p.missing)))
			for _, m := range p.missing {
				sb.WriteString(fmt.Sprintf("    - %q\n", m))
			}
		case len(p.added) > 0:
			sb.WriteString(fmt.Sprintf("✓ Page %d: original text intact\n", p.page))
		}
		for _, a := range p.added {
			sb.WriteString(fmt.Sprintf("    + %q at (%.1f, %.1f) %s %.1f\n", a.Text, a.X, a.Y, a.Font, a.Size))
		}
	}

	if r.complete() {
		sb.WriteString("\nResult: complete\n")
	} else {
		sb.WriteString("\nResult: INCOMPLETE\n")
	}
	return sb.String()
}
