package bundler

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/andesco/bundler/pkg/pipeline"
)

var (
	urlCall = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+?)(['"]?)\s*\)`)

	// end tags are matched case-insensitively by the HTML parser
	scriptEnd = regexp.MustCompile(`(?i)</(script)`)
	styleEnd  = regexp.MustCompile(`(?i)</(style)`)
)

// ReplaceImages embeds img sources as data URIs.
func ReplaceImages(ctx context.Context, resp *pipeline.Response) (*pipeline.Response, error) {
	return rewriteDocument(resp, func(doc *goquery.Document) {
		doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			if res := embeddable(ctx, resp, src); res != nil {
				sel.SetAttr("src", dataURI(res))
			}
		})
	})
}

// ReplaceJSFiles inlines external scripts.
func ReplaceJSFiles(ctx context.Context, resp *pipeline.Response) (*pipeline.Response, error) {
	return rewriteDocument(resp, func(doc *goquery.Document) {
		doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			res := embeddable(ctx, resp, src)
			if res == nil {
				return
			}
			sel.RemoveAttr("src")
			for _, n := range sel.Nodes {
				setRawText(n, scriptEnd.ReplaceAllString(string(res.Body), `<\/$1`))
			}
		})
	})
}

// ReplaceCSSFiles replaces stylesheet links by style elements holding the
// stylesheet.
func ReplaceCSSFiles(ctx context.Context, resp *pipeline.Response) (*pipeline.Response, error) {
	return rewriteDocument(resp, func(doc *goquery.Document) {
		doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
			rel, _ := sel.Attr("rel")
			if !hasToken(rel, "stylesheet") {
				return
			}
			href, _ := sel.Attr("href")
			res := embeddable(ctx, resp, href)
			if res == nil {
				return
			}
			style := &html.Node{Type: html.ElementNode, Data: "style", DataAtom: atom.Style}
			if media, ok := sel.Attr("media"); ok {
				style.Attr = append(style.Attr, html.Attribute{Key: "media", Val: media})
			}
			setRawText(style, styleEnd.ReplaceAllString(string(res.Body), `<\/$1`))
			sel.ReplaceWithNodes(style)
		})
	})
}

// ReplaceURLCalls embeds url(...) references of style elements and style
// attributes as data URIs.
func ReplaceURLCalls(ctx context.Context, resp *pipeline.Response) (*pipeline.Response, error) {
	return rewriteDocument(resp, func(doc *goquery.Document) {
		doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
			setRawText(sel.Nodes[0], inlineURLCalls(ctx, resp, sel.Text()))
		})
		doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
			css, _ := sel.Attr("style")
			sel.SetAttr("style", inlineURLCalls(ctx, resp, css))
		})
	})
}

// ReplaceLinks passes every anchor href through rewrite.
func ReplaceLinks(rewrite func(ref string) string) pipeline.Filter {
	return func(_ context.Context, resp *pipeline.Response) (*pipeline.Response, error) {
		return rewriteDocument(resp, func(doc *goquery.Document) {
			doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
				href, _ := sel.Attr("href")
				sel.SetAttr("href", rewrite(href))
			})
		})
	}
}

// BundleCSSRecursively embeds the url(...) references of fetched stylesheets.
func BundleCSSRecursively(ctx context.Context, resp *pipeline.Response) (*pipeline.Response, error) {
	if resp.MediaType() != "text/css" {
		return resp, nil
	}
	resp.Body = []byte(inlineURLCalls(ctx, resp, string(resp.Body)))
	return resp, nil
}

// rewriteDocument applies edit to HTML responses and re-renders the body.
// Other responses pass through untouched.
func rewriteDocument(resp *pipeline.Response, edit func(doc *goquery.Document)) (*pipeline.Response, error) {
	if resp.MediaType() != "text/html" {
		return resp, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}

	edit(doc)

	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	resp.Body = []byte(out)
	return resp, nil
}

// embeddable fetches ref when it is in scope and not already embedded.
func embeddable(ctx context.Context, resp *pipeline.Response, ref string) *pipeline.Response {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "#") {
		return nil
	}
	if !resp.InScope(ref) {
		return nil
	}
	res, err := resp.Fetch(ctx, ref)
	if err != nil {
		return nil
	}
	return res
}

func inlineURLCalls(ctx context.Context, resp *pipeline.Response, css string) string {
	return urlCall.ReplaceAllStringFunc(css, func(call string) string {
		m := urlCall.FindStringSubmatch(call)
		if m[1] != m[3] {
			return call
		}
		res := embeddable(ctx, resp, m[2])
		if res == nil {
			return call
		}
		return `url("` + dataURI(res) + `")`
	})
}

func dataURI(res *pipeline.Response) string {
	mediaType := res.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = http.DetectContentType(res.Body)
	}
	return "data:" + strings.ReplaceAll(mediaType, " ", "") + ";base64," + base64.StdEncoding.EncodeToString(res.Body)
}

// setRawText replaces the children of n by a single text node. The HTML
// renderer writes the text of script and style elements unescaped.
func setRawText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}
