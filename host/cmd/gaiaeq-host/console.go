package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"gaiaeq/core"
	"gaiaeq/equalizer"
	"gaiaeq/host/session"
	"gaiaeq/protocol"
)

var errUsage = errors.New("usage")

func consoleCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive equalizer console",
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, _, err := a.openDevice()
			if err != nil {
				return err
			}
			defer dev.Shutdown()

			fmt.Fprintln(a.out, "GAIA Equalizer Host")
			fmt.Fprintln(a.out, "===================")
			fmt.Fprintf(a.out, "Connected to %s\n\n", a.settings.Serial.Device)

			c := newConsole(dev.Session(), a.out)
			c.sync = dev.Sync
			c.syncTimeout = syncTimeout(a.settings.Session.RequestTimeout)
			defer c.close()

			if err := dev.Session().Refresh(); err != nil {
				fmt.Fprintf(a.out, "Error: %v\n", err)
			}
			return c.run(os.Stdin)
		},
	}
}

// consoleEvents are printed as they arrive
var consoleEvents = []string{
	session.EventGetMasterGain,
	session.EventGetFilter,
	session.EventGetFrequency,
	session.EventGetGain,
	session.EventGetQuality,
	session.EventGetPreset,
	session.EventSetPreset,
	session.EventSetConfirmed,
	session.EventIncorrectState,
	session.EventControlNotSupported,
	session.EventRequestTimeout,
	session.EventTransportError,
	session.EventNotification,
}

type console struct {
	sess        *session.Session
	out         io.Writer
	sync        func(time.Duration) error
	syncTimeout time.Duration
	subs        []core.Subscription
}

func newConsole(sess *session.Session, out io.Writer) *console {
	c := &console{sess: sess, out: out}
	for _, name := range consoleEvents {
		c.subs = append(c.subs, sess.Subscribe(name, c.printEvent))
	}
	return c
}

func (c *console) close() {
	for i, name := range consoleEvents {
		c.sess.Unsubscribe(name, c.subs[i])
	}
}

func (c *console) run(in io.Reader) error {
	fmt.Fprintln(c.out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}

		quit, err := c.exec(scanner.Text())
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

// exec runs one console line. It reports whether the console should exit.
func (c *console) exec(line string) (bool, error) {
	args, err := shlex.Split(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}

	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "quit", "exit", "q":
		return true, nil

	case "help", "?":
		c.printHelp()
		return false, nil

	case "refresh":
		return false, c.sess.Refresh()

	case "sync":
		if c.sync == nil {
			return false, errors.New("sync needs a connected device")
		}
		if err := c.sync(c.syncTimeout); err != nil {
			return false, err
		}
		c.printBank()
		return false, nil

	case "show":
		c.printBank()
		return false, nil

	case "json":
		data, err := json.MarshalIndent(c.sess.Snapshot(), "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, string(data))
		return false, nil

	case "filters":
		for _, f := range equalizer.AllFilterTypes() {
			fmt.Fprintf(c.out, "  %2d  %-5s\n", uint8(f), f)
		}
		return false, nil

	case "band":
		n, err := intArg(args, 0, "band N")
		if err != nil {
			return false, err
		}
		return false, c.sess.SelectBand(n)

	case "filter":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: filter NAME", errUsage)
		}
		f, err := equalizer.ParseFilterType(args[0])
		if err != nil {
			return false, err
		}
		return false, c.sess.SelectFilter(f)

	case "get":
		return false, c.get(args)

	case "set":
		return false, c.set(args)

	case "slide":
		if len(args) != 2 {
			return false, fmt.Errorf("%w: slide KIND POSITION", errUsage)
		}
		kind, err := equalizer.ParseKind(args[0])
		if err != nil {
			return false, err
		}
		pos, err := strconv.Atoi(args[1])
		if err != nil {
			return false, fmt.Errorf("invalid position %q", args[1])
		}
		raw, err := c.sess.MoveSlider(kind, pos)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s -> %s\n", kind, kind.Format(float64(raw)/float64(kind.Factor())))
		return false, nil

	case "preset":
		if len(args) == 0 {
			return false, c.sess.GetPreset()
		}
		n, err := intArg(args, 0, "preset [N]")
		if err != nil {
			return false, err
		}
		return false, c.sess.SetPreset(n)

	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
}

func (c *console) get(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: get filter|freq|gain|q|master", errUsage)
	}
	current := c.sess.Snapshot().CurrentBand

	if strings.EqualFold(args[0], "filter") {
		return c.sess.GetEQParameter(current, protocol.ParamFilter)
	}
	kind, err := equalizer.ParseKind(args[0])
	if err != nil {
		return err
	}
	if kind == equalizer.KindMasterGain {
		return c.sess.GetMasterGain()
	}
	param, _ := session.ParamOf(kind)
	return c.sess.GetEQParameter(current, param)
}

// set takes a real value (Hz, dB, Q) for the current band or the master gain
func (c *console) set(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: set freq|gain|q|master VALUE", errUsage)
	}
	kind, err := equalizer.ParseKind(args[0])
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value %q", args[1])
	}

	if kind == equalizer.KindMasterGain {
		return c.sess.SetMasterGain(kind.Raw(v))
	}
	param, _ := session.ParamOf(kind)
	return c.sess.SetEQParameter(c.sess.Snapshot().CurrentBand, param, kind.Raw(v))
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, "\nAvailable commands:")
	fmt.Fprintln(c.out, "  help                 - Show this help message")
	fmt.Fprintln(c.out, "  show                 - Print the local equalizer mirror")
	fmt.Fprintln(c.out, "  json                 - Print the mirror as JSON")
	fmt.Fprintln(c.out, "  refresh              - Request master gain, current filter and preset")
	fmt.Fprintln(c.out, "  sync                 - Read the whole equalizer")
	fmt.Fprintln(c.out, "  filters              - List filter types")
	fmt.Fprintln(c.out, "  band N               - Select band N")
	fmt.Fprintln(c.out, "  filter NAME          - Change the filter of the current band")
	fmt.Fprintln(c.out, "  get KIND             - Request filter|freq|gain|q|master")
	fmt.Fprintln(c.out, "  set KIND VALUE       - Write a value in Hz, dB or Q")
	fmt.Fprintln(c.out, "  slide KIND POS       - Write a slider position")
	fmt.Fprintln(c.out, "  preset [N]           - Request or select a preset")
	fmt.Fprintln(c.out, "  quit/exit/q          - Exit the program")
	fmt.Fprintln(c.out)
}

func (c *console) printBank() {
	snap := c.sess.Snapshot()

	fmt.Fprintf(c.out, "master gain: %s\n", paramText(snap.MasterGain))
	for _, b := range snap.Bands {
		marker := " "
		if b.Number == snap.CurrentBand {
			marker = "*"
		}
		state := "stale"
		if b.FilterFresh {
			state = "fresh"
		}
		fmt.Fprintf(c.out, "%s band %d  %-5s (%s)  f=%s  g=%s  q=%s\n",
			marker, b.Number, b.Filter, state,
			paramText(b.Frequency), paramText(b.Gain), paramText(b.Quality))
	}
	if snap.UpToDate {
		fmt.Fprintln(c.out, "up to date")
	}
}

func paramText(p equalizer.ParameterSnapshot) string {
	if !p.Configurable {
		return "-"
	}
	if p.State != "fresh" {
		return p.Label + "?"
	}
	return p.Label
}

func (c *console) printEvent(ev session.Event) {
	switch ev.Name {
	case session.EventGetFilter:
		fmt.Fprintf(c.out, "\n< band %d filter %s\n", ev.Band, ev.Filter)
	case session.EventGetMasterGain, session.EventGetFrequency, session.EventGetGain, session.EventGetQuality:
		fmt.Fprintf(c.out, "\n< %s %s\n", target(ev), ev.Kind.Format(float64(ev.Value)/float64(ev.Kind.Factor())))
	case session.EventGetPreset, session.EventSetPreset:
		fmt.Fprintf(c.out, "\n< preset %d\n", ev.Preset)
	case session.EventSetConfirmed:
		fmt.Fprintf(c.out, "\n< %s confirmed\n", target(ev))
	case session.EventNotification:
		fmt.Fprintf(c.out, "\n< notification 0x%04X % X\n", ev.Command, ev.Payload)
	default:
		msg := ev.Status.String()
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		fmt.Fprintf(c.out, "\n! %s %s: %s\n", ev.Name, protocol.CommandName(ev.Command), msg)
	}
}

func target(ev session.Event) string {
	if ev.Kind == equalizer.KindMasterGain {
		return "master gain"
	}
	if ev.ID.Param() == protocol.ParamFilter {
		return fmt.Sprintf("band %d filter", ev.Band)
	}
	return fmt.Sprintf("band %d %s", ev.Band, ev.Kind)
}

func intArg(args []string, i int, usage string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[i])
	}
	return n, nil
}
