// Command map1 computes MAP v1.1 identifiers and canonical bytes from
// JSON descriptors.
//
// Subcommands:
//
//	map1 mid [--bind ptr]... [file|-]
//	    Compute the MID of a JSON descriptor (FULL by default, BIND if
//	    --bind is given one or more times).
//
//	map1 canon-bytes [--bind ptr]... [file|-]
//	    Emit CANON_BYTES for a JSON descriptor to stdout.
//
//	map1 verify [file|-]
//	    Validate pre-built CANON_BYTES (read as raw bytes, not JSON) and
//	    print the resulting MID.
//
// Exit codes: 0 success, 2 validation failure (one of the nine ERR_*
// codes), 10 internal error (I/O failure).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-substrate/map1"
	"github.com/lattice-substrate/map1/maperr"
	"github.com/lattice-substrate/map1/mapjson"
)

const (
	exitSuccess = 0
	exitInvalid = 2
	exitInternal = 10
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	exitCode := exitSuccess

	root := &cobra.Command{
		Use:           "map1",
		Short:         "Compute MAP v1.1 identifiers and canonical bytes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	var bindPointers []string

	midCmd := &cobra.Command{
		Use:   "mid [file|-]",
		Short: "Compute the MID of a JSON descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			input, err := readInput(posArgs, stdin)
			if err != nil {
				exitCode = exitInternal
				return err
			}
			id, err := map1.MIDFullJSON(input, bindPointers...)
			if err != nil {
				exitCode = exitCodeFor(err)
				return err
			}
			fmt.Fprintln(stdout, id)
			return nil
		},
	}
	midCmd.Flags().StringArrayVar(&bindPointers, "bind", nil, "RFC 6901 pointer to select (repeatable); omit for FULL")

	var canonBindPointers []string
	canonCmd := &cobra.Command{
		Use:   "canon-bytes [file|-]",
		Short: "Emit CANON_BYTES for a JSON descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			input, err := readInput(posArgs, stdin)
			if err != nil {
				exitCode = exitInternal
				return err
			}
			val, dupFound, err := mapjson.Parse(input)
			if err != nil {
				exitCode = exitCodeFor(err)
				return err
			}
			var canon []byte
			if len(canonBindPointers) > 0 {
				canon, err = map1.CanonicalBytesBind(val, canonBindPointers)
			} else {
				canon, err = map1.CanonicalBytesFull(val)
			}
			if err != nil {
				exitCode = exitCodeFor(err)
				return err
			}
			if dupFound {
				exitCode = exitInvalid
				return maperr.New(maperr.ErrDupKey, "duplicate key in JSON")
			}
			if _, err := stdout.Write(canon); err != nil {
				exitCode = exitInternal
				return err
			}
			return nil
		},
	}
	canonCmd.Flags().StringArrayVar(&canonBindPointers, "bind", nil, "RFC 6901 pointer to select (repeatable); omit for FULL")

	verifyCmd := &cobra.Command{
		Use:   "verify [file|-]",
		Short: "Validate pre-built CANON_BYTES and print the resulting MID",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, posArgs []string) error {
			input, err := readInput(posArgs, stdin)
			if err != nil {
				exitCode = exitInternal
				return err
			}
			id, err := map1.MIDFromCanonicalBytes(input)
			if err != nil {
				exitCode = exitCodeFor(err)
				return err
			}
			fmt.Fprintln(stdout, id)
			return nil
		},
	}

	root.AddCommand(midCmd, canonCmd, verifyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if exitCode == exitSuccess {
			exitCode = exitInvalid
		}
		return exitCode
	}
	return exitSuccess
}

func readInput(positional []string, stdin io.Reader) ([]byte, error) {
	if len(positional) == 0 || positional[0] == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(positional[0])
}

func exitCodeFor(err error) int {
	if me, ok := err.(*maperr.Error); ok {
		return me.ExitCode()
	}
	return exitInternal
}
