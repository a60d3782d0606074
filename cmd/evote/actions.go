package main

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"secret-evoting/workflow"
)

var searchCmd = &cobra.Command{
	Use:   "search <address>",
	Short: "Show a voting contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx, cancel := commandContext(c)
		defer cancel()

		svc, err := startService(ctx)
		if err != nil {
			return err
		}
		defer svc.Stop()

		spinner, _ := pterm.DefaultSpinner.WithText("Loading contract " + args[0]).Start()
		st, err := svc.Search(ctx, args[0])
		stopSpinner(spinner)
		if err != nil {
			return err
		}
		return renderView(workflow.NewView(st, time.Now()))
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <address> <candidate-id>",
	Short: "Vote for a candidate",
	Args:  cobra.ExactArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		candidateID, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Wrapf(err, "invalid candidate id %q", args[1])
		}

		ctx, cancel := commandContext(c)
		defer cancel()

		svc, err := startService(ctx)
		if err != nil {
			return err
		}
		defer svc.Stop()

		st, err := svc.Search(ctx, args[0])
		if err != nil {
			return err
		}
		if st.Alert != nil {
			return renderView(workflow.NewView(st, time.Now()))
		}

		spinner, _ := pterm.DefaultSpinner.WithText("Submitting vote").Start()
		st, err = svc.Vote(ctx, candidateID)
		stopSpinner(spinner)
		if err != nil {
			pterm.Warning.Println(voteRefusal(err))
			return err
		}
		if st.Alert == nil {
			pterm.Success.Println("Vote submitted")
		}
		return renderView(workflow.NewView(st, time.Now()))
	},
}

func voteRefusal(err error) string {
	switch {
	case errors.Is(err, workflow.ErrWalletNotConnected):
		return "Wallet is not connected"
	case errors.Is(err, workflow.ErrUnknownCandidate):
		return "No such candidate"
	case errors.Is(err, workflow.ErrVoteUnavailable):
		return "Voting is not possible: it is finished or you already voted"
	default:
		return err.Error()
	}
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a voting contract",
	RunE: func(c *cobra.Command, args []string) error {
		flags := c.Flags()
		title, _ := flags.GetString("title")
		candidates, _ := flags.GetStringArray("candidate")
		voters, _ := flags.GetStringArray("voter")
		closeDate, _ := flags.GetString("close-date")
		closeTime, _ := flags.GetString("close-time")

		edit := workflow.DraftEdited{
			Title:      &title,
			Candidates: candidates,
			Voters:     voters,
		}
		if closeDate != "" {
			d, err := time.Parse("2006-01-02", closeDate)
			if err != nil {
				return errors.Wrap(err, "close-date must be YYYY-MM-DD")
			}
			edit.CloseDate = &d
		}
		if closeTime != "" {
			edit.CloseTime = &closeTime
		}

		ctx, cancel := commandContext(c)
		defer cancel()

		svc, err := startService(ctx)
		if err != nil {
			return err
		}
		defer svc.Stop()

		if _, err := svc.EditDraft(ctx, edit); err != nil {
			return err
		}

		spinner, _ := pterm.DefaultSpinner.WithText("Instantiating contract").Start()
		st, err := svc.Create(ctx)
		stopSpinner(spinner)
		if err != nil {
			return err
		}
		if st.Alert != nil {
			renderAlert(st.Alert)
			return errors.New(st.Alert.Content)
		}
		pterm.Success.Println("Contract created")
		pterm.DefaultTable.WithHasHeader(false).WithData(pterm.TableData{
			{"Address", st.CreatedAddress},
			{"Title", title},
		}).Render()
		return nil
	},
}

func init() {
	flags := createCmd.Flags()
	flags.String("title", "", "contract title")
	flags.StringArray("candidate", nil, "candidate name, repeatable")
	flags.StringArray("voter", nil, "voter address, repeatable")
	flags.String("close-date", "", "close date, YYYY-MM-DD (UTC)")
	flags.String("close-time", "", "close time of day, HH:MM (UTC)")
	_ = createCmd.MarkFlagRequired("title")
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show chain, contract code and wallet details",
	RunE: func(c *cobra.Command, args []string) error {
		ctx, cancel := commandContext(c)
		defer cancel()

		svc, err := startService(ctx)
		if err != nil {
			return err
		}
		defer svc.Stop()

		info := svc.Info()
		pterm.DefaultSection.Println("E-voting client")
		return pterm.DefaultTable.WithHasHeader(false).WithData(pterm.TableData{
			{"Chain", info.ChainID},
			{"LCD", info.LCDURL},
			{"Code id", strconv.FormatUint(info.CodeID, 10)},
			{"Code hash", info.CodeHash},
			{"Receipt store", info.StorageDriver},
			{"Account index", strconv.FormatUint(uint64(info.AccountIndex), 10)},
			{"Wallet", workflow.WalletStatusText(info.Wallet.Status)},
			{"Address", info.Wallet.Address},
		}).Render()
	},
}
