// Package parser pulls recipes out of Markdown documents.
package parser

import (
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// CodeBlock is a fenced block of a Markdown document.
type CodeBlock struct {
	// Hint is the paragraph right above the block, often a file name.
	Hint    string
	Lang    string
	Content string
}

// ExtractCodeBlocks returns the fenced code blocks of source in document order.
func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		blocks = append(blocks, CodeBlock{
			Hint:    hintOf(fenced, source),
			Lang:    strings.ToLower(strings.TrimSpace(string(fenced.Language(source)))),
			Content: linesOf(fenced, source),
		})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func linesOf(n ast.Node, source []byte) string {
	var b strings.Builder
	segs := n.Lines()
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

func hintOf(n ast.Node, source []byte) string {
	p, ok := n.PreviousSibling().(*ast.Paragraph)
	if !ok {
		return ""
	}
	return strings.TrimSpace(string(p.Text(source)))
}

// ExtractRecipe returns the recipe held by a Markdown document. A yaml block
// whose hint names a .yml or .yaml file wins, otherwise the first yaml block
// is used. Content that is already a YAML mapping is returned unchanged, even
// when a payload inside it carries a fence, as is a document with no yaml
// block.
func ExtractRecipe(content string) (string, error) {
	if !strings.Contains(content, "```") && !strings.Contains(content, "~~~") {
		return content, nil
	}
	if isYAMLMapping(content) {
		return content, nil
	}
	blocks, err := ExtractCodeBlocks([]byte(content))
	if err != nil {
		return "", err
	}

	first := -1
	for i, b := range blocks {
		if b.Lang != "yaml" && b.Lang != "yml" {
			continue
		}
		if first < 0 {
			first = i
		}
		switch path.Ext(strings.Trim(b.Hint, "`")) {
		case ".yml", ".yaml":
			return b.Content, nil
		}
	}
	if first < 0 {
		return content, nil
	}
	return blocks[first].Content, nil
}

func isYAMLMapping(content string) bool {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return false
	}
	return len(doc.Content) == 1 && doc.Content[0].Kind == yaml.MappingNode
}
