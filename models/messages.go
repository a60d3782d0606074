package models

// Query kinds understood by the voting contract.
const (
	QueryGetName          = "get_name"
	QueryGetCandidateList = "get_candidate_list"
	QueryGetVotersCount   = "get_voters_count"
	QueryGetCloseTime     = "get_close_time"
	QueryGetResults       = "get_results"
)

// QueryMsg builds the {"<kind>": {}} envelope the contract expects.
func QueryMsg(kind string) map[string]struct{} {
	return map[string]struct{}{kind: {}}
}

type SubmitVote struct {
	CandidateID int `json:"candidate_id"`
}

type ExecuteMsg struct {
	SubmitVote *SubmitVote `json:"submit_vote,omitempty"`
}

// InitMsg is the instantiate message of the voting contract.
type InitMsg struct {
	Name       string      `json:"name"`
	Candidates []Candidate `json:"candidates"`
	Voters     []string    `json:"voters"`
	CloseTime  int64       `json:"close_time"`
}
