package pipeline

import (
	"errors"
	"fmt"
)

// QueryType is the handling category assigned by classification.
type QueryType string

const (
	// QueryCasual marks small talk answered without any retrieval.
	QueryCasual QueryType = "casual"
	// QueryHistory marks questions answerable from the conversation alone.
	QueryHistory QueryType = "history_question"
	// QueryRetrieval marks questions that need the document index or the web.
	QueryRetrieval QueryType = "retrieval_question"
)

// Status reports whether a run produced a usable answer.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Origin tags where a piece of evidence came from.
type Origin string

const (
	OriginLocal Origin = "local"
	OriginWeb   Origin = "web"
)

// Stage failure kinds. Every collaborator error is wrapped in exactly one
// of these before being recorded, so callers can classify diagnostics
// with errors.Is.
var (
	ErrClassification = errors.New("classification failed")
	ErrHistoryCheck   = errors.New("history check failed")
	ErrRetrieval      = errors.New("retrieval failed")
	ErrSufficiency    = errors.New("sufficiency check failed")
	ErrWebSearch      = errors.New("web search failed")
	ErrGeneration     = errors.New("generation failed")
)

// Evidence is one retrieved snippet used to ground generation.
// Score is meaningful for local evidence (cosine similarity in [0,1]);
// web evidence carries a fixed score and a source URL instead.
type Evidence struct {
	Content   string
	Title     string
	Score     float64
	Origin    Origin
	SourceURL string
}

// Request is one pipeline invocation. ConversationContext is the
// pre-formatted transcript of recent exchanges, possibly empty.
// SessionScope, when non-empty, restricts document retrieval to one
// session's uploaded material.
type Request struct {
	UserQuery           string
	ConversationContext string
	SessionScope        string
}

// Result is the structured outcome of a run. Callers always receive one;
// no error escapes Run.
type Result struct {
	FinalAnswer         string
	Status              Status
	QueryType           QueryType
	SamplingTemperature float32
	RetrievedEvidence   int
	WebSearchUsed       bool
	AnsweredFromMemory  bool
	// Diagnostic describes the first degraded collaborator call of the
	// run, empty when everything succeeded. For logging, not for users.
	Diagnostic string
}

// state is the mutable working record of a single run. Stages write their
// outputs into it monotonically; no stage resets an earlier stage's field.
// One run, one goroutine, never shared.
type state struct {
	req Request

	queryType       QueryType
	temperature     float32
	skipRetrieval   bool
	localEvidence   []Evidence
	webEvidence     []Evidence
	combined        []Evidence
	memoryAnswer    string
	answeredFromMem bool
	sufficient      bool
	webInvoked      bool
	prompt          string
	finalAnswer     string
	status          Status
	failure         error
}

func newState(req Request) *state {
	return &state{
		req:    req,
		status: StatusSuccess,
	}
}

// recordFailure keeps the first degraded collaborator call of the run.
func (s *state) recordFailure(kind, cause error) {
	if s.failure == nil {
		s.failure = fmt.Errorf("%w: %w", kind, cause)
	}
}

func (s *state) result() Result {
	r := Result{
		FinalAnswer:         s.finalAnswer,
		Status:              s.status,
		QueryType:           s.queryType,
		SamplingTemperature: s.temperature,
		RetrievedEvidence:   len(s.combined),
		WebSearchUsed:       s.webInvoked,
		AnsweredFromMemory:  s.answeredFromMem,
	}
	if s.failure != nil {
		r.Diagnostic = s.failure.Error()
	}
	return r
}
