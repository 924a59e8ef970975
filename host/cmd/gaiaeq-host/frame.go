package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gaiaeq/equalizer"
	"gaiaeq/host/session"
	"gaiaeq/protocol"
)

func frameCommand() *cobra.Command {
	var recalc bool

	cmd := &cobra.Command{
		Use:   "frame get|set|preset ...",
		Short: "Print the bytes of a GAIA equalizer command without sending it",
		Long: `Examples:
  frame get master
  frame get 2 gain
  frame set 1 freq 1000
  frame set master -1200 --recalc
  frame preset 1
  frame preset`,
		Args: cobra.MinimumNArgs(1),
		// no device or config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := buildFrame(args, recalc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "% X\n", frame)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recalc, "recalc", false, "Set the recalculation flag of a SET_EQ_PARAMETER")
	return cmd
}

// buildFrame encodes a command from console style arguments. Values of set
// are raw wire values.
func buildFrame(args []string, recalc bool) ([]byte, error) {
	switch strings.ToLower(args[0]) {
	case "preset":
		if len(args) == 1 {
			return protocol.Encode(protocol.CommandGetEQControl, nil, false), nil
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 || n >= protocol.NumberOfPresets {
			return nil, fmt.Errorf("invalid preset %q", args[1])
		}
		return protocol.Encode(protocol.CommandSetEQControl, protocol.SetEQControlPayload(uint8(n)), false), nil

	case "get":
		id, rest, err := parseTarget(args[1:])
		if err != nil {
			return nil, err
		}
		if len(rest) != 0 {
			return nil, fmt.Errorf("%w: frame get master | frame get BAND PARAM", errUsage)
		}
		return protocol.Encode(protocol.CommandGetEQParameter, protocol.GetEQParameterPayload(id), false), nil

	case "set":
		id, rest, err := parseTarget(args[1:])
		if err != nil {
			return nil, err
		}
		if len(rest) != 1 {
			return nil, fmt.Errorf("%w: frame set master RAW | frame set BAND PARAM RAW", errUsage)
		}
		raw, err := strconv.Atoi(rest[0])
		if err != nil || raw < -0x8000 || raw > 0xFFFF {
			return nil, fmt.Errorf("invalid raw value %q", rest[0])
		}
		payload := protocol.SetEQParameterPayload(id, uint16(raw), recalc)
		return protocol.Encode(protocol.CommandSetEQParameter, payload, false), nil

	default:
		return nil, fmt.Errorf("%w: frame get|set|preset", errUsage)
	}
}

// parseTarget reads "master" or "BAND PARAM" and returns the remaining args
func parseTarget(args []string) (protocol.ParameterID, []string, error) {
	if len(args) == 0 {
		return 0, nil, fmt.Errorf("%w: missing parameter", errUsage)
	}
	if strings.EqualFold(args[0], "master") {
		return protocol.MasterGainID(), args[1:], nil
	}
	if len(args) < 2 {
		return 0, nil, fmt.Errorf("%w: BAND PARAM", errUsage)
	}

	band, err := strconv.Atoi(args[0])
	if err != nil || band < 1 || band > 15 {
		return 0, nil, fmt.Errorf("invalid band %q", args[0])
	}

	param := protocol.ParamFilter
	if !strings.EqualFold(args[1], "filter") {
		kind, err := equalizer.ParseKind(args[1])
		if err != nil || kind == equalizer.KindMasterGain {
			return 0, nil, fmt.Errorf("invalid parameter %q", args[1])
		}
		param, _ = session.ParamOf(kind)
	}
	return protocol.NewParameterID(uint8(band), param), args[2:], nil
}
