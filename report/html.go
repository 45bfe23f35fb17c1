package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const pageSkeleton = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title></title>
<style>
body { font-family: sans-serif; margin: 1em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px; vertical-align: top; white-space: pre-wrap; }
td.picked { background: #e6ffe6; }
td.score { text-align: right; }
</style>
</head>
<body>
<h1></h1>
<p class="summary"></p>
<table>
<thead><tr></tr></thead>
<tbody></tbody>
</table>
</body>
</html>`

var htmlColumns = []string{"idx", "key", "source", "a", "b", "score a", "score b", "pick", "reasons"}

// WriteHTML renders the comparison as a standalone HTML table. Texts are
// inserted as text nodes, so game markup shows up literally.
func WriteHTML(w io.Writer, cmp *Comparison, title string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageSkeleton))
	if err != nil {
		return fmt.Errorf("parse page skeleton: %w", err)
	}

	if cmp.Lang != "" {
		doc.Find("html").SetAttr("lang", wotrtl.ToHTMLLang(wotrtl.NormalizeLocale(cmp.Lang))).
			SetAttr("dir", wotrtl.GetDirection(cmp.Lang))
	}
	doc.Find("title").AppendNodes(textNode(title))
	doc.Find("h1").AppendNodes(textNode(title))
	doc.Find("p.summary").AppendNodes(textNode(fmt.Sprintf(
		"rows=%d picked_a=%d picked_b=%d same=%d", len(cmp.Rows), cmp.PickedA, cmp.PickedB, cmp.Same)))

	head := doc.Find("thead tr")
	for _, c := range htmlColumns {
		head.AppendNodes(cell(atom.Th, c))
	}

	body := doc.Find("tbody")
	for _, r := range cmp.Rows {
		tr := element(atom.Tr)
		tr.Attr = append(tr.Attr, html.Attribute{Key: "id", Val: "idx-" + strconv.Itoa(r.Idx)})

		a := cell(atom.Td, r.A)
		b := cell(atom.Td, r.B)
		if r.Pick == SideA {
			setClass(a, "picked")
		} else {
			setClass(b, "picked")
		}
		scoreA := cell(atom.Td, formatScore(r.ScoreA))
		scoreB := cell(atom.Td, formatScore(r.ScoreB))
		setClass(scoreA, "score")
		setClass(scoreB, "score")

		for _, td := range []*html.Node{
			cell(atom.Td, strconv.Itoa(r.Idx)),
			cell(atom.Td, r.Key),
			cell(atom.Td, r.Source),
			a,
			b,
			scoreA,
			scoreB,
			cell(atom.Td, r.Pick),
			cell(atom.Td, r.Reasons()),
		} {
			tr.AppendChild(td)
		}
		body.AppendNodes(tr)
	}

	out, err := doc.Html()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// WriteHTMLFile writes the HTML report to path atomically.
func WriteHTMLFile(path string, cmp *Comparison, title string) error {
	return catalog.WriteAtomic(path, func(w io.Writer) error {
		return WriteHTML(w, cmp, title)
	})
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func cell(a atom.Atom, text string) *html.Node {
	n := element(a)
	n.AppendChild(textNode(text))
	return n
}

func setClass(n *html.Node, class string) {
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
}
