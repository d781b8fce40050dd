// Package chunk turns a Jira issue into the set of text chunks the vector
// store indexes it as. It is pure: no I/O, no clock reads beyond what the
// caller passes in, and deterministic for a given issue and endpoint.
package chunk

import (
	"fmt"
	"strings"

	"github.com/evalgo/jirasync/jira"
)

// maxDescriptionChunkLength is the sentence-boundary segmentation limit
// applied to issue descriptions.
const maxDescriptionChunkLength = 1000

// Kind discriminates the three chunk shapes an issue can produce.
type Kind string

const (
	KindSummary     Kind = "summary"
	KindDescription Kind = "description"
	KindComment     Kind = "comment"
)

// Chunk is one unit of indexable text plus the issue-level metadata every
// chunk from the same issue carries.
type Chunk struct {
	ChunkID  string
	Text     string
	Kind     Kind
	Index    int
	IssueKey string

	ProjectKey  string
	Status      string
	Priority    string
	IssueType   string
	Labels      []string
	Components  []string
	FixVersions []string
	Assignee    string
	Reporter    string
	Summary     string

	// CommentAuthor is set only on Kind == KindComment chunks.
	CommentAuthor string

	SourceURL string
	CreatedAt string
	UpdatedAt string
}

// ForIssue builds every chunk for issue, in stable order: one summary
// chunk (when the summary is non-empty), then the description chunks, then
// one chunk per non-blank comment, indexed by the comment's position in
// the issue's comment list. now is
// stamped onto CreatedAt/UpdatedAt for every chunk produced; callers pass
// it in rather than this package reading the clock, to keep the function
// pure and its output reproducible in tests.
func ForIssue(issue jira.RawIssue, endpoint, now string) []Chunk {
	f := issue.Fields
	sourceURL := fmt.Sprintf("%s/browse/%s", strings.TrimSuffix(endpoint, "/"), issue.Key)

	base := Chunk{
		IssueKey:    issue.Key,
		ProjectKey:  f.Project.Key,
		Status:      orUnknown(f.Status.Name),
		Priority:    orDefault(f.Priority.Name, "None"),
		IssueType:   orUnknown(f.IssueType.Name),
		Labels:      f.Labels,
		Components:  f.ComponentNames(),
		FixVersions: f.FixVersionNames(),
		Summary:     f.Summary,
		SourceURL:   sourceURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if f.Assignee != nil {
		base.Assignee = f.Assignee.DisplayName
	}
	if f.Reporter != nil {
		base.Reporter = f.Reporter.DisplayName
	}

	var chunks []Chunk

	if f.Summary != "" {
		c := base
		c.ChunkID = chunkID(issue.Key, KindSummary, 0)
		c.Text = f.Summary
		c.Kind = KindSummary
		c.Index = 0
		chunks = append(chunks, c)
	}

	if strings.TrimSpace(f.Description) != "" {
		for i, text := range SplitText(f.Description, maxDescriptionChunkLength) {
			c := base
			c.ChunkID = chunkID(issue.Key, KindDescription, i)
			c.Text = text
			c.Kind = KindDescription
			c.Index = i
			chunks = append(chunks, c)
		}
	}

	for i, comment := range f.Comment.Comments {
		body := strings.TrimSpace(comment.Body)
		if body == "" {
			continue
		}
		c := base
		c.ChunkID = chunkID(issue.Key, KindComment, i)
		c.Text = body
		c.Kind = KindComment
		c.Index = i
		c.CommentAuthor = orUnknown(comment.Author.DisplayName)
		chunks = append(chunks, c)
	}

	return chunks
}

func chunkID(issueKey string, kind Kind, index int) string {
	return fmt.Sprintf("chunk_jira_%s_%s_%d", issueKey, kind, index)
}

func orUnknown(s string) string { return orDefault(s, "Unknown") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// SplitText segments text into sentence-bounded chunks of at most
// maxLength. Newlines are treated as sentence separators ("\n" becomes
// ". "); sentences are accumulated greedily into the current chunk, and
// the chunk is sealed as soon as adding the next sentence plus its
// trailing ". " separator would exceed maxLength. A single sentence longer
// than maxLength becomes a chunk of its own and is not split further, so
// that chunk exceeds maxLength.
func SplitText(text string, maxLength int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= maxLength {
		return []string{text}
	}

	normalized := strings.ReplaceAll(text, "\n", ". ")
	sentences := strings.Split(normalized, ". ")

	var chunks []string
	var current strings.Builder

	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if current.Len()+len(s)+2 <= maxLength {
			current.WriteString(s)
			current.WriteString(". ")
		} else {
			if current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
			}
			current.Reset()
			current.WriteString(s)
			current.WriteString(". ")
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}
