package strategy

import (
	"fmt"
	"strings"

	"github.com/kjannette/trahn-post-trader/internal/models"
)

// quoteSuffixLen is the length of the USD quote suffix on tickers like DOGEUSD.
const quoteSuffixLen = 3

type RejectReason string

const (
	Accepted        RejectReason = ""
	RejectAuthor    RejectReason = "author is not the tracked account"
	RejectRepost    RejectReason = "post is a repost"
	RejectReply     RejectReason = "post is a reply"
	RejectNoKeyword RejectReason = "post does not mention the ticker"
)

// BuySignal is emitted for every post that should open a position.
type BuySignal struct {
	Text string
	Post models.Post
}

// Rules holds the tracked account and the keyword derived from the ticker.
type Rules struct {
	Handle  string
	Keyword string
}

func NewRules(handle, ticker string) (Rules, error) {
	base, err := BaseAsset(ticker)
	if err != nil {
		return Rules{}, err
	}
	return Rules{
		Handle:  strings.ToLower(strings.TrimPrefix(handle, "@")),
		Keyword: strings.ToLower(base),
	}, nil
}

// BaseAsset strips the quote suffix: "DOGEUSD" -> "DOGE".
func BaseAsset(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if len(t) <= quoteSuffixLen {
		return "", fmt.Errorf("ticker %q too short: expected <BASE>USD", ticker)
	}
	return t[:len(t)-quoteSuffixLen], nil
}

// QuoteAsset returns the quote suffix: "DOGEUSD" -> "USD".
func QuoteAsset(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if len(t) <= quoteSuffixLen {
		return t
	}
	return t[len(t)-quoteSuffixLen:]
}

// Evaluate applies the filters in order and stops at the first failure.
// On acceptance it returns the signal to act on.
func (r Rules) Evaluate(p models.Post) (*BuySignal, RejectReason) {
	if strings.ToLower(p.AuthorHandle) != r.Handle {
		return nil, RejectAuthor
	}
	if p.IsRepost {
		return nil, RejectRepost
	}
	if p.IsReply() {
		return nil, RejectReply
	}
	text := p.FullText()
	if !strings.Contains(strings.ToLower(text), r.Keyword) {
		return nil, RejectNoKeyword
	}
	return &BuySignal{Text: text, Post: p}, Accepted
}
