package main

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"

	"secret-evoting/workflow"
)

func stopSpinner(s *pterm.SpinnerPrinter) {
	if s != nil {
		_ = s.Stop()
	}
}

func renderAlert(a *workflow.Alert) {
	pterm.Error.Println(a.Title + ": " + a.Content)
}

// renderView prints the interact page. An alert in the view is returned as
// an error so the command exits non-zero.
func renderView(v workflow.View) error {
	if v.Alert != nil {
		renderAlert(v.Alert)
		return errors.New(v.Alert.Content)
	}
	if v.Contract == nil {
		pterm.Info.Println("No contract loaded")
		return nil
	}

	ct := v.Contract
	pterm.DefaultSection.Println(ct.Name)
	if err := pterm.DefaultTable.WithHasHeader(false).WithData(pterm.TableData{
		{"Address", ct.Address},
		{"State", ct.State},
		{"Close time", ct.CloseTime.Local().Format(time.RFC1123)},
		{"Voters", strconv.FormatUint(ct.VotersCount, 10)},
		{"Last refresh", ct.LastRefresh.Local().Format(time.RFC1123)},
	}).Render(); err != nil {
		return err
	}

	data := pterm.TableData{{"ID", "Candidate", "Votes", ""}}
	for _, cand := range ct.Candidates {
		votes := ""
		if cand.Votes != nil {
			votes = strconv.FormatUint(*cand.Votes, 10)
		}
		data = append(data, []string{strconv.Itoa(cand.ID), cand.Name, votes, cand.Label})
	}
	return pterm.DefaultTable.WithHasHeader().WithHeaderRowSeparator("-").WithData(data).Render()
}
