package semantic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PaperCompass/internal/models"
)

const fields = "title,abstract,url,year,authors,venue,publicationDate,citationCount," +
	"influentialCitationCount,openAccessPdf,externalIds"

type searchResponse struct {
	Total int        `json:"total"`
	Data  []apiPaper `json:"data"`
}

type apiPaper struct {
	PaperID                  string         `json:"paperId"`
	Title                    string         `json:"title"`
	Abstract                 *string        `json:"abstract"`
	URL                      string         `json:"url"`
	Year                     *int           `json:"year"`
	Venue                    string         `json:"venue"`
	PublicationDate          *string        `json:"publicationDate"`
	CitationCount            int            `json:"citationCount"`
	InfluentialCitationCount int            `json:"influentialCitationCount"`
	Authors                  []apiAuthor    `json:"authors"`
	OpenAccessPDF            *apiPDF        `json:"openAccessPdf"`
	ExternalIDs              map[string]any `json:"externalIds"`
}

type apiAuthor struct {
	Name string `json:"name"`
}

type apiPDF struct {
	URL string `json:"url"`
}

// ParseSearchResponse 解析 /paper/search 的 JSON；since 非零时丢弃早于该日期的论文
// （publicationDate 缺失或无法解析的保留），没有摘要的论文一律丢弃
func ParseSearchResponse(body []byte, since time.Time) ([]*models.Paper, int, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}

	papers := make([]*models.Paper, 0, len(resp.Data))
	for _, d := range resp.Data {
		abstract := ""
		if d.Abstract != nil {
			abstract = strings.TrimSpace(*d.Abstract)
		}
		if abstract == "" || abstract == models.NoAbstract {
			continue
		}

		var published time.Time
		if d.PublicationDate != nil && *d.PublicationDate != "" {
			if t, err := time.Parse("2006-01-02", *d.PublicationDate); err == nil {
				published = t
			}
		}
		if !since.IsZero() && !published.IsZero() && published.Before(since) {
			continue
		}

		papers = append(papers, toPaper(d, abstract, published))
	}
	return papers, resp.Total, nil
}

func toPaper(d apiPaper, abstract string, published time.Time) *models.Paper {
	p := &models.Paper{
		Source:           Name,
		SourceID:         d.PaperID,
		Title:            strings.TrimSpace(d.Title),
		Abstract:         abstract,
		URL:              d.URL,
		Venue:            d.Venue,
		CitationCount:    d.CitationCount,
		InfluentialCount: d.InfluentialCitationCount,
		PublishedAt:      published,
	}
	if p.Title == "" {
		p.Title = "Untitled"
	}
	if p.URL == "" && d.PaperID != "" {
		p.URL = "https://www.semanticscholar.org/paper/" + d.PaperID
	}
	if d.Year != nil {
		p.Year = strconv.Itoa(*d.Year)
	}
	if d.OpenAccessPDF != nil {
		p.PDFURL = d.OpenAccessPDF.URL
	}
	if doi, ok := d.ExternalIDs["DOI"].(string); ok {
		p.DOI = doi
	}
	for _, a := range d.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	return p
}
