package branding

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/wintent/plugin-config/pkg/logger"
	"github.com/wintent/plugin-config/pkg/metrics"
)

// Options configures what the injector writes into a page.
type Options struct {
	CSS          string
	StyleID      string
	MarkerAttr   string
	FaviconTitle string
	Logger       *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.CSS == "" {
		o.CSS = DefaultCSS
	}
	if o.StyleID == "" {
		o.StyleID = DefaultStyleID
	}
	if o.MarkerAttr == "" {
		o.MarkerAttr = DefaultMarkerAttr
	}
	if o.FaviconTitle == "" {
		o.FaviconTitle = DefaultFaviconTitle
	}
	if o.Logger == nil {
		o.Logger = logger.WithModule("branding")
	}
	return o
}

// Injector applies the style override and favicon to documents.
type Injector struct {
	client APIClient
	opts   Options
	log    *zap.Logger
}

// NewInjector builds an injector querying attachments through client.
func NewInjector(client APIClient, opts Options) (*Injector, error) {
	if client == nil {
		return nil, errors.New("branding: api client is required")
	}
	opts = opts.withDefaults()
	return &Injector{client: client, opts: opts, log: opts.Logger}, nil
}

// Load runs both branding steps. The favicon step cannot prevent style injection.
func (i *Injector) Load(ctx context.Context, doc *Document) {
	i.InjectCustomStyles(doc)
	i.UpdateFavicon(ctx, doc)
}

// InjectCustomStyles appends the override <style> element to the head. Repeated calls
// append repeated elements.
func (i *Injector) InjectCustomStyles(doc *Document) {
	style := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Style,
		Data:     "style",
		Attr: []html.Attribute{
			{Key: i.opts.MarkerAttr, Val: "true"},
			{Key: "id", Val: i.opts.StyleID},
		},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: i.opts.CSS})
	doc.AppendToHead(style)

	i.log.Debug("custom css styles injected", zap.String("id", i.opts.StyleID))
}

// UpdateFavicon points the page favicon at the uploaded Wintent favicon when one exists.
// Lookup failures are logged and leave the document untouched.
func (i *Injector) UpdateFavicon(ctx context.Context, doc *Document) {
	resp, err := i.client.Request(ctx, Request{
		URL: AttachmentsListResource,
		Params: Params{
			Filter:   map[string]any{"title": i.opts.FaviconTitle},
			PageSize: 1,
		},
	})
	if err != nil {
		i.log.Error("failed to update favicon", zap.Error(err))
		metrics.FaviconLookups.WithLabelValues("error").Inc()
		return
	}

	faviconURL := ""
	if resp != nil && len(resp.Data.Data) > 0 {
		faviconURL = resp.Data.Data[0].URL
	}
	if faviconURL == "" {
		i.log.Info("wintent favicon not found in attachments", zap.String("title", i.opts.FaviconTitle))
		metrics.FaviconLookups.WithLabelValues("missing").Inc()
		return
	}

	link := doc.FindIconLink()
	if link == nil {
		link = &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Link,
			Data:     "link",
			Attr:     []html.Attribute{{Key: "rel", Val: "shortcut icon"}},
		}
		doc.AppendToHead(link)
	}
	SetAttr(link, "href", faviconURL)

	i.log.Debug("favicon updated", zap.String("url", faviconURL))
	metrics.FaviconLookups.WithLabelValues("found").Inc()
}
