package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secret-evoting/chain"
	"secret-evoting/models"
)

var testNow = time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC)

func connectedState() State {
	s := Initial(Settings{CodeHash: "hash", AddressPrefix: "secret"}, testNow)
	s, _ = Reduce(s, WalletUpdated{Session: models.WalletSession{Status: models.WalletConnected, Address: "secret1wallet"}})
	return s
}

func interactState(t *testing.T, snap models.Snapshot) State {
	t.Helper()
	s, cmds := Reduce(connectedState(), SearchRequested{Address: "secret1contract"})
	require.Len(t, cmds, 1)
	fetch := cmds[0].(FetchSnapshot)
	s, _ = Reduce(s, SnapshotLoaded{Seq: fetch.Seq, Ref: fetch.Ref, Snapshot: &snap})
	require.Equal(t, PhaseInteract, s.Phase)
	return s
}

func openSnapshot() models.Snapshot {
	return models.Snapshot{
		Name:        "Board",
		Candidates:  []models.Candidate{{ID: 0, Name: "Alice"}, {ID: 1, Name: "Bob"}},
		VotersCount: 3,
		CloseTime:   testNow.Add(time.Hour),
		Results:     []models.CandidateResult{},
		FetchedAt:   testNow,
	}
}

func TestInitialState(t *testing.T) {
	s := Initial(Settings{CodeHash: "hash"}, testNow)
	assert.Equal(t, PhaseSearch, s.Phase)
	assert.Equal(t, models.WalletConnecting, s.Wallet.Status)
	assert.Equal(t, models.DefaultCloseTimeOffset, s.Draft.CloseTimeOffset)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), s.Draft.CloseDate)
}

func TestSearchRequiresWallet(t *testing.T) {
	s := Initial(Settings{CodeHash: "hash"}, testNow)
	s, cmds := Reduce(s, SearchRequested{Address: "secret1contract"})
	require.NotNil(t, s.Alert)
	assert.Equal(t, "Wallet error", s.Alert.Title)
	assert.False(t, s.Loading)
	require.Len(t, cmds, 1)
	assert.IsType(t, ExpireAlert{}, cmds[0])
}

func TestSearchEmptyAddress(t *testing.T) {
	s, cmds := Reduce(connectedState(), SearchRequested{})
	require.NotNil(t, s.Alert)
	assert.Equal(t, "Smart contract error", s.Alert.Title)
	assert.Equal(t, "Invalid smart contract address or transmission error", s.Alert.Content)
	require.Len(t, cmds, 1)
}

func TestSearchLoadsSnapshot(t *testing.T) {
	s, _ := Reduce(connectedState(), SearchTextChanged{Text: " secret1contract "})
	s, cmds := Reduce(s, SearchRequested{})
	assert.True(t, s.Loading)
	assert.Equal(t, PhaseSearch, s.Phase)
	require.Len(t, cmds, 1)
	fetch := cmds[0].(FetchSnapshot)
	assert.Equal(t, models.ContractRef{Address: "secret1contract", CodeHash: "hash"}, fetch.Ref)
	assert.Equal(t, "secret1wallet", fetch.Wallet)
	assert.Equal(t, s.SearchSeq, fetch.Seq)

	snap := openSnapshot()
	s, cmds = Reduce(s, SnapshotLoaded{Seq: fetch.Seq, Ref: fetch.Ref, Snapshot: &snap})
	assert.Empty(t, cmds)
	assert.Equal(t, PhaseInteract, s.Phase)
	assert.False(t, s.Loading)
	assert.Equal(t, "secret1contract", s.Contract.Address)
	assert.Equal(t, "Board", s.Snapshot.Name)
}

func TestSearchFailureKeepsPhase(t *testing.T) {
	s, cmds := Reduce(connectedState(), SearchRequested{Address: "secret1contract"})
	fetch := cmds[0].(FetchSnapshot)

	s, cmds = Reduce(s, SnapshotFailed{Seq: fetch.Seq, Err: errors.New("boom")})
	assert.Equal(t, PhaseSearch, s.Phase)
	assert.False(t, s.Loading)
	assert.Nil(t, s.Snapshot)
	require.NotNil(t, s.Alert)
	assert.Equal(t, "Smart contract error", s.Alert.Title)
	require.Len(t, cmds, 1)
}

func TestNewSearchReplacesInFlight(t *testing.T) {
	s, cmds := Reduce(connectedState(), SearchRequested{Address: "secret1first"})
	first := cmds[0].(FetchSnapshot)
	s, cmds = Reduce(s, SearchRequested{Address: "secret1second"})
	second := cmds[0].(FetchSnapshot)
	require.Greater(t, second.Seq, first.Seq)

	stale := openSnapshot()
	stale.Name = "stale"
	s, _ = Reduce(s, SnapshotLoaded{Seq: first.Seq, Ref: first.Ref, Snapshot: &stale})
	assert.True(t, s.Loading)
	assert.Equal(t, PhaseSearch, s.Phase)

	s, _ = Reduce(s, SnapshotFailed{Seq: first.Seq, Err: errors.New("late")})
	assert.Nil(t, s.Alert)

	fresh := openSnapshot()
	s, _ = Reduce(s, SnapshotLoaded{Seq: second.Seq, Ref: second.Ref, Snapshot: &fresh})
	assert.Equal(t, "secret1second", s.Contract.Address)
	assert.Equal(t, "Board", s.Snapshot.Name)
}

func TestRefreshReusesContract(t *testing.T) {
	s := interactState(t, openSnapshot())
	s, cmds := Reduce(s, RefreshRequested{})
	require.Len(t, cmds, 1)
	fetch := cmds[0].(FetchSnapshot)
	assert.Equal(t, "secret1contract", fetch.Ref.Address)
	assert.True(t, s.Loading)
	assert.Equal(t, PhaseInteract, s.Phase)

	_, cmds = Reduce(connectedState(), RefreshRequested{})
	assert.Empty(t, cmds)
}

func TestReturnClearsSnapshot(t *testing.T) {
	s := interactState(t, openSnapshot())
	s, cmds := Reduce(s, RefreshRequested{})
	inFlight := cmds[0].(FetchSnapshot)

	s, cmds = Reduce(s, ReturnRequested{})
	assert.Equal(t, []Command{CancelFetch{}}, cmds)
	assert.Equal(t, PhaseSearch, s.Phase)
	assert.Empty(t, s.SearchText)
	assert.False(t, s.Loading)
	assert.False(t, s.Voting)
	assert.Nil(t, s.Contract)
	assert.Nil(t, s.Snapshot)
	assert.True(t, s.Wallet.Connected())

	late := openSnapshot()
	s, _ = Reduce(s, SnapshotLoaded{Seq: inFlight.Seq, Ref: inFlight.Ref, Snapshot: &late})
	assert.Equal(t, PhaseSearch, s.Phase)
	assert.Nil(t, s.Snapshot)
}

func TestWalletReconnectResearches(t *testing.T) {
	s := interactState(t, openSnapshot())
	s, cmds := Reduce(s, WalletUpdated{Session: models.WalletSession{Status: models.WalletConnecting}})
	assert.Empty(t, cmds)
	assert.Equal(t, PhaseInteract, s.Phase)

	s, cmds = Reduce(s, WalletUpdated{Session: models.WalletSession{Status: models.WalletConnected, Address: "secret1other"}})
	require.Len(t, cmds, 1)
	fetch := cmds[0].(FetchSnapshot)
	assert.Equal(t, "secret1contract", fetch.Ref.Address)
	assert.Equal(t, "secret1other", fetch.Wallet)
	assert.True(t, s.Loading)

	_, cmds = Reduce(connectedState(), WalletUpdated{Session: models.WalletSession{Status: models.WalletConnected, Address: "secret1other"}})
	assert.Empty(t, cmds)
}

func TestVoteGating(t *testing.T) {
	open := openSnapshot()

	voted := openSnapshot()
	voted.AlreadyVoted = true

	closed := openSnapshot()
	closed.CloseTime = testNow.Add(-time.Hour)

	tests := []struct {
		name string
		snap models.Snapshot
		id   int
		err  error
	}{
		{"open", open, 1, nil},
		{"already voted", voted, 1, ErrVoteUnavailable},
		{"closed", closed, 1, ErrVoteUnavailable},
		{"unknown candidate", open, 7, ErrUnknownCandidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := interactState(t, tt.snap)
			assert.Equal(t, tt.err, CanVote(s, tt.id, testNow))

			next, cmds := Reduce(s, VoteRequested{CandidateID: tt.id, Now: testNow})
			if tt.err != nil {
				assert.Empty(t, cmds)
				assert.False(t, next.Voting)
				return
			}
			require.Len(t, cmds, 1)
			assert.Equal(t, SubmitVote{Wallet: "secret1wallet", Contract: "secret1contract", CandidateID: 1}, cmds[0])
			assert.True(t, next.Voting)

			// A second click while the first vote is in flight sends nothing.
			_, cmds = Reduce(next, VoteRequested{CandidateID: tt.id, Now: testNow})
			assert.Empty(t, cmds)
		})
	}
}

func TestVoteWithoutWallet(t *testing.T) {
	s := interactState(t, openSnapshot())
	s, _ = Reduce(s, WalletUpdated{Session: models.WalletSession{Status: models.WalletError, Error: "gone"}})
	s, cmds := Reduce(s, VoteRequested{CandidateID: 0, Now: testNow})
	require.Len(t, cmds, 1)
	assert.IsType(t, ExpireAlert{}, cmds[0])
	assert.Equal(t, "Wallet error", s.Alert.Title)
}

func TestVoteOutcome(t *testing.T) {
	s := interactState(t, openSnapshot())
	s, _ = Reduce(s, VoteRequested{CandidateID: 0, Now: testNow})
	before := s.Snapshot

	ok, cmds := Reduce(s, VoteSucceeded{Wallet: "secret1wallet", Contract: "secret1contract"})
	assert.Equal(t, []Command{PersistReceipt{Wallet: "secret1wallet", Contract: "secret1contract"}}, cmds)
	assert.False(t, ok.Voting)
	assert.True(t, ok.Snapshot.AlreadyVoted)
	assert.False(t, before.AlreadyVoted, "reducer must not mutate the previous snapshot")
	assert.ErrorIs(t, CanVote(ok, 0, testNow), ErrVoteUnavailable)

	failed, cmds := Reduce(s, VoteFailed{Err: errors.New("rejected")})
	require.Len(t, cmds, 1)
	assert.False(t, failed.Voting)
	assert.False(t, failed.Snapshot.AlreadyVoted)
	assert.Equal(t, "Smart contract error", failed.Alert.Title)
	assert.NoError(t, CanVote(failed, 0, testNow))
}

func TestVoteSucceededAfterReturnStillPersists(t *testing.T) {
	s := interactState(t, openSnapshot())
	s, _ = Reduce(s, VoteRequested{CandidateID: 0, Now: testNow})
	s, _ = Reduce(s, ReturnRequested{})

	s, cmds := Reduce(s, VoteSucceeded{Wallet: "secret1wallet", Contract: "secret1contract"})
	assert.Equal(t, []Command{PersistReceipt{Wallet: "secret1wallet", Contract: "secret1contract"}}, cmds)
	assert.Nil(t, s.Snapshot)
}

func TestRefreshBeforeReceiptKeepsVote(t *testing.T) {
	s := interactState(t, openSnapshot())
	s, _ = Reduce(s, VoteRequested{CandidateID: 0, Now: testNow})
	s, _ = Reduce(s, VoteSucceeded{Wallet: "secret1wallet", Contract: "secret1contract"})

	// The refresh reads the chain before the receipt is written.
	s, cmds := Reduce(s, RefreshRequested{})
	fetch := cmds[0].(FetchSnapshot)
	stale := openSnapshot()
	s, _ = Reduce(s, SnapshotLoaded{Seq: fetch.Seq, Ref: fetch.Ref, Wallet: fetch.Wallet, Snapshot: &stale})

	assert.True(t, s.Snapshot.AlreadyVoted)
	assert.False(t, stale.AlreadyVoted)
	assert.ErrorIs(t, CanVote(s, 1, testNow), ErrVoteUnavailable)

	// Another wallet on the same contract may still vote.
	s, cmds = Reduce(s, WalletUpdated{Session: models.WalletSession{Status: models.WalletConnected, Address: "secret1other"}})
	fetch = cmds[0].(FetchSnapshot)
	other := openSnapshot()
	s, _ = Reduce(s, SnapshotLoaded{Seq: fetch.Seq, Ref: fetch.Ref, Wallet: fetch.Wallet, Snapshot: &other})
	assert.False(t, s.Snapshot.AlreadyVoted)
}

func TestDraftEdits(t *testing.T) {
	s := connectedState()
	title := "Board"
	closeDate := time.Date(2030, 2, 3, 15, 0, 0, 0, time.UTC)
	closeTime := "02:30"
	s, cmds := Reduce(s, DraftEdited{
		Title:      &title,
		Candidates: []string{"Alice", "Bob", "Alice", " "},
		Voters:     []string{"secret1a", "secret1a"},
		CloseDate:  &closeDate,
		CloseTime:  &closeTime,
	})
	assert.Empty(t, cmds)
	assert.Equal(t, "Board", s.Draft.Title)
	assert.Equal(t, []string{"Alice", "Bob"}, s.Draft.Candidates)
	assert.Equal(t, []string{"secret1a"}, s.Draft.Voters)
	assert.Equal(t, time.Date(2030, 2, 3, 0, 0, 0, 0, time.UTC), s.Draft.CloseDate)
	assert.Equal(t, int64(9000), s.Draft.CloseTimeOffset)

	blank := ""
	s, _ = Reduce(s, DraftEdited{CloseTime: &blank})
	assert.Equal(t, int64(9000), s.Draft.CloseTimeOffset)
	assert.Equal(t, "Board", s.Draft.Title)
}

func validDraftState(t *testing.T) State {
	s := connectedState()
	title := "Board"
	s, _ = Reduce(s, DraftEdited{
		Title:      &title,
		Candidates: []string{"Alice", "Bob"},
		Voters:     []string{voterAddress(t, 1)},
	})
	return s
}

func TestCreateFlow(t *testing.T) {
	s := validDraftState(t)
	s, cmds := Reduce(s, CreateRequested{Now: testNow})
	require.Len(t, cmds, 1)
	inst := cmds[0].(Instantiate)
	assert.True(t, s.Creating)
	assert.Equal(t, "Board_2030-01-01T08:00:00.000Z", inst.Label)
	assert.Equal(t, []models.Candidate{{ID: 0, Name: "Alice"}, {ID: 1, Name: "Bob"}}, inst.Msg.Candidates)
	assert.Equal(t, time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC).Unix(), inst.Msg.CloseTime)

	_, cmds = Reduce(s, CreateRequested{Now: testNow})
	assert.Empty(t, cmds, "create in flight")

	done, _ := Reduce(s, CreateSucceeded{Address: "secret1new", Now: testNow})
	assert.False(t, done.Creating)
	assert.Equal(t, "secret1new", done.CreatedAddress)
	assert.Equal(t, models.NewCreationDraft(testNow), done.Draft)
}

func TestCreateFailureKeepsDraft(t *testing.T) {
	s := validDraftState(t)
	s, _ = Reduce(s, CreateRequested{Now: testNow})

	malformed, _ := Reduce(s, CreateFailed{Err: &chain.TxError{Code: 3, Log: "Error parsing into type InitMsg"}})
	assert.False(t, malformed.Creating)
	assert.Equal(t, "JSON parsing error", malformed.Alert.Title)
	assert.Equal(t, "Invalid smart contract instantiation message", malformed.Alert.Content)
	assert.Equal(t, "Board", malformed.Draft.Title)

	generic, _ := Reduce(s, CreateFailed{Err: chain.ErrNoContractAddress})
	assert.Equal(t, "Smart contract error", generic.Alert.Title)
	assert.Equal(t, []string{"Alice", "Bob"}, generic.Draft.Candidates)
}

func TestCreateInvalidDraft(t *testing.T) {
	s, cmds := Reduce(connectedState(), CreateRequested{Now: testNow})
	require.Len(t, cmds, 1)
	assert.IsType(t, ExpireAlert{}, cmds[0])
	assert.Equal(t, "Invalid draft", s.Alert.Title)
	assert.False(t, s.Creating)
}

func TestAlertExpiry(t *testing.T) {
	s, _ := Reduce(connectedState(), SearchRequested{})
	first := s.Alert.ID
	s, _ = Reduce(s, SearchRequested{})
	second := s.Alert.ID
	require.NotEqual(t, first, second)

	s, _ = Reduce(s, AlertExpired{ID: first})
	require.NotNil(t, s.Alert, "an older timer must not clear a newer alert")

	s, _ = Reduce(s, AlertExpired{ID: second})
	assert.Nil(t, s.Alert)

	s, _ = Reduce(s, SearchRequested{})
	s, _ = Reduce(s, AlertDismissed{})
	assert.Nil(t, s.Alert)
}
