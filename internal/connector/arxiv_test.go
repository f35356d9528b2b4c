// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const sampleArxivSearchXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v5</id>
    <title>Attention Is All
      You Need</title>
    <summary>The dominant sequence transduction models are based on complex recurrent networks.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <updated>2023-08-02T00:41:18Z</updated>
    <author><name>Ashish Vaswani</name><arxiv:affiliation>Google Brain</arxiv:affiliation></author>
    <author><name>Noam Shazeer</name></author>
    <arxiv:doi>10.48550/arXiv.1706.03762</arxiv:doi>
    <arxiv:journal_ref>NeurIPS 2017</arxiv:journal_ref>
    <link href="http://arxiv.org/abs/1706.03762v5" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v5" rel="related" type="application/pdf"/>
    <arxiv:primary_category term="cs.CL"/>
    <category term="cs.CL"/>
    <category term="cs.LG"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <title>BERT: Pre-training of Deep Bidirectional Transformers</title>
    <summary>We introduce BERT.</summary>
    <published>2018-10-11T00:00:00Z</published>
    <author><name>Jacob Devlin</name></author>
  </entry>
  <entry>
    <id>not-an-arxiv-id</id>
    <title>Broken</title>
  </entry>
</feed>`

func withArxivServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() {
		arxivAPIBase = old
		ts.Close()
	})
	return ts
}

func TestArxivSearch(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, sampleArxivSearchXML)
	})

	a := NewArxiv(ts.Client(), "test/0.1")
	docs, err := a.Search(context.Background(), Request{Query: "attention"})
	if err != nil {
		t.Fatalf("Arxiv.Search: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}

	d := docs[0]
	if d.ID != "1706.03762" {
		t.Errorf("ID = %q, want %q", d.ID, "1706.03762")
	}
	if d.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q, whitespace should be collapsed", d.Title)
	}
	if len(d.Authors) != 2 || d.Authors[0].Affiliation != "Google Brain" {
		t.Errorf("Authors = %+v", d.Authors)
	}
	if d.SourceProvider != "arxiv" {
		t.Errorf("SourceProvider = %q, want arxiv", d.SourceProvider)
	}
	if d.Access != types.AccessOpen {
		t.Errorf("Access = %q, want open_access", d.Access)
	}
	if d.DOI != "10.48550/arXiv.1706.03762" {
		t.Errorf("DOI = %q", d.DOI)
	}
	if d.PDFURL != "http://arxiv.org/pdf/1706.03762v5" {
		t.Errorf("PDFURL = %q", d.PDFURL)
	}
	if d.Year() != 2017 {
		t.Errorf("Year() = %d, want 2017", d.Year())
	}
	if len(d.Subjects) != 2 {
		t.Errorf("Subjects = %v, want 2 categories", d.Subjects)
	}
	if d.RawMetadata["primary_category"] != "cs.CL" {
		t.Errorf("primary_category = %v", d.RawMetadata["primary_category"])
	}

	// Second entry has no DOI and no PDF link but still satisfies the sentinels.
	if docs[1].CitationCount != 0 || docs[1].DocumentType != "preprint" {
		t.Errorf("second doc = %+v", docs[1])
	}
}

func TestArxivSearchRequestParams(t *testing.T) {
	var got *http.Request
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	})

	a := NewArxiv(ts.Client(), "test/0.1")
	docs, err := a.Search(context.Background(), Request{Query: "graph networks", Limit: 7, YearMin: 2020})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("len(docs) = %d, want 0", len(docs))
	}

	q := got.URL.Query()
	if q.Get("max_results") != "7" {
		t.Errorf("max_results = %q, want 7", q.Get("max_results"))
	}
	want := "all:graph networks AND submittedDate:[202001010000 TO 299912312359]"
	if q.Get("search_query") != want {
		t.Errorf("search_query = %q, want %q", q.Get("search_query"), want)
	}
	if got.Header.Get("User-Agent") != "test/0.1" {
		t.Errorf("User-Agent = %q", got.Header.Get("User-Agent"))
	}
}

func TestArxivSearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		query   string
		errPart string
	}{
		{"http error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) }, "x", "HTTP 502"},
		{"malformed xml", func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "<feed><entry>") }, "x", "parsing arXiv response"},
		{"empty query", nil, "  ", "empty arXiv query"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := tt.handler
			if h == nil {
				h = func(w http.ResponseWriter, _ *http.Request) { t.Error("unexpected request") }
			}
			ts := withArxivServer(t, h)
			_, err := NewArxiv(ts.Client(), "").Search(context.Background(), Request{Query: tt.query})
			if err == nil || !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("err = %v, want containing %q", err, tt.errPart)
			}
		})
	}
}

func TestArxivHealth(t *testing.T) {
	ts := withArxivServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("max_results") != "1" {
			t.Errorf("health probe should ask for one result")
		}
		fmt.Fprint(w, sampleArxivSearchXML)
	})
	rep := NewArxiv(ts.Client(), "").Health(context.Background())
	if !rep.Available || rep.Err != nil {
		t.Errorf("Health = %+v, want available", rep)
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/1706.03762v5", "1706.03762"},
		{"http://arxiv.org/abs/2301.12345", "2301.12345"},
		{"https://arxiv.org/abs/2301.07041v2", "2301.07041"},
		{"http://arxiv.org/abs/hep-th/9901001v1", "hep-th/9901001"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := extractArxivID(tt.input)
			if got != tt.want {
				t.Errorf("extractArxivID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBuildArxivQuery(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"free text", Request{Query: "attention mechanisms"}, "all:attention mechanisms"},
		{"strips syntax characters", Request{Query: `"deep" (learning): x+y`}, "all:deep learning xy"},
		{"year window", Request{Query: "bert", YearMin: 2018, YearMax: 2019}, "all:bert AND submittedDate:[201801010000 TO 201912312359]"},
		{"upper bound only", Request{Query: "bert", YearMax: 2010}, "all:bert AND submittedDate:[190001010000 TO 201012312359]"},
		{"empty", Request{Query: "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildArxivQuery(tt.req); got != tt.want {
				t.Errorf("buildArxivQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}
