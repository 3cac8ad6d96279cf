package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
	"github.com/kanselarij-vlaanderen/themis-export-service/kaleidos"
	"github.com/kanselarij-vlaanderen/themis-export-service/logger"
	"github.com/kanselarij-vlaanderen/themis-export-service/ordering"
	"github.com/kanselarij-vlaanderen/themis-export-service/vocab"
)

// exportedNewsItem ties a newsitem to the public agenda item it was
// published under.
type exportedNewsItem struct {
	News   *kaleidos.NewsItem
	Item   publicAgendaItem
	Number int
}

// agendaAndNewsItems writes the public agenda, its agenda items and one
// newsitem per agenda item, in publication order.
func (p *Pipeline) agendaAndNewsItems(ctx context.Context, log *zap.SugaredLogger, b *builder, meeting *kaleidos.Meeting, activity string, includeAnnouncements bool) ([]exportedNewsItem, error) {
	previous, err := p.previousPublication(ctx, meeting.URI)
	if err != nil {
		return nil, err
	}
	if previous.activity != "" {
		log.Infow("Found previous publication activity", "previous", previous.activity)
	}

	agenda, err := p.source.LatestAgenda(ctx, meeting.URI)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get latest agenda of meeting %s", meeting.URI)
	}
	items, err := p.source.AgendaItems(ctx, agenda.URI)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get agenda items of %s", agenda.URI)
	}
	if !includeAnnouncements {
		kept := items[:0]
		for _, item := range items {
			if !item.IsAnnouncement() {
				kept = append(kept, item)
			}
		}
		items = kept
	}

	agendaURI := b.publicAgenda(agenda, meeting.URI, activity, previous.agenda)
	public := p.positionAgendaItems(items)
	for _, item := range public {
		b.agendaItem(item, agendaURI, activity, previous.items[item.Source.URI])
	}
	if err := p.flush(ctx, b, "public agenda"); err != nil {
		return nil, err
	}
	log.Infow("Copied public agenda", logger.FieldAgenda, agendaURI, logger.FieldCount, len(public))

	news := make([]*kaleidos.NewsItem, len(public))
	for i, item := range public {
		n, err := p.source.NewsItem(ctx, item.Source.NewsletterInfo, item.Source.URI)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get newsitem of agenda item %s", item.Source.URI)
		}
		news[i] = n
	}

	ordered := ordering.Order(newsOrderingItems(public, news))
	exported := make([]exportedNewsItem, 0, len(ordered))
	for _, o := range ordered {
		n := news[o.Index]
		text := n.Text
		if text == "" && n.HTMLContent != "" {
			if text, err = PlainText(n.HTMLContent); err != nil {
				return nil, errors.Wrapf(err, "failed to derive text of newsitem %s", n.URI)
			}
		}
		b.newsItem(n, o.Sequence, public[o.Index].URI, text)
		exported = append(exported, exportedNewsItem{News: n, Item: public[o.Index], Number: o.Sequence})
		log.Debugw(fmt.Sprintf("[%d] %s", o.Sequence, n.Title), "newsitem", n.URI)
	}
	if err := p.flush(ctx, b, "newsitems"); err != nil {
		return nil, err
	}
	log.Infow("Copied newsitems", logger.FieldCount, len(exported))
	return exported, nil
}

// positionAgendaItems mints the public agenda items and numbers them as the
// public agenda lists them.
func (p *Pipeline) positionAgendaItems(items []kaleidos.AgendaItem) []publicAgendaItem {
	input := make([]ordering.Item, len(items))
	for i, item := range items {
		input[i] = ordering.Item{Key: item.URI, Kind: kindOf(item), Number: item.Number}
	}
	positioned := ordering.Positions(input)

	public := make([]publicAgendaItem, len(positioned))
	for i, o := range positioned {
		id := p.newID()
		itemType := vocab.NotaType
		if o.Item.Kind == ordering.Announcement {
			itemType = vocab.AnnouncementType
		}
		public[i] = publicAgendaItem{
			ID:       id,
			URI:      vocab.PublicResource("agendapunt", id),
			Source:   items[o.Index],
			Position: o.Sequence,
			Type:     itemType,
		}
	}
	for i, o := range positioned {
		if o.Predecessor >= 0 {
			public[i].Previous = public[o.Predecessor].URI
		}
	}
	return public
}

func newsOrderingItems(public []publicAgendaItem, news []*kaleidos.NewsItem) []ordering.Item {
	input := make([]ordering.Item, len(public))
	for i, item := range public {
		mandatees := make([]ordering.Mandatee, len(news[i].Mandatees))
		for j, m := range news[i].Mandatees {
			mandatees[j] = ordering.Mandatee{ID: m.URI, Priority: m.Priority}
		}
		input[i] = ordering.Item{
			Key:       item.Source.URI,
			Kind:      kindOf(item.Source),
			Number:    item.Position,
			Mandatees: mandatees,
		}
	}
	return input
}

func kindOf(item kaleidos.AgendaItem) ordering.Kind {
	if item.IsAnnouncement() {
		return ordering.Announcement
	}
	return ordering.Primary
}

// documents copies the public pieces of every newsitem.
func (p *Pipeline) documents(ctx context.Context, log *zap.SugaredLogger, b *builder, newsItems []exportedNewsItem) error {
	total := 0
	for _, n := range newsItems {
		pieces, err := p.source.PublicDocuments(ctx, n.News.URI, n.Item.Source.URI)
		if err != nil {
			return errors.Wrapf(err, "failed to get public documents of newsitem %s", n.News.URI)
		}
		for _, piece := range pieces {
			triples, err := p.source.DocumentTriples(ctx, piece)
			if err != nil {
				return errors.Wrapf(err, "failed to get document %s", piece)
			}
			b.document(n.News.URI, piece, triples)
		}
		if err := p.flush(ctx, b, "documents"); err != nil {
			return err
		}
		log.Debugw(fmt.Sprintf("[%d/%d documents] %s", n.Number, len(pieces), n.News.Title), "newsitem", n.News.URI)
		total += len(pieces)
	}
	log.Infow("Copied documents", logger.FieldCount, total)
	return nil
}
