package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"imascore/internal/alcontext"
	"imascore/internal/interp"
	"imascore/internal/lowlevel"
	"imascore/internal/types"
)

func newURICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "uri <uri>",
		Short: "Resolve a data entry URI and print its backend.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			de, err := alcontext.NewDataEntryContext(args[0], alcontext.WithEnvironment(a.env))
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, de.String())
			fmt.Fprintf(a.stdout, "backend \t\t = %d (%s)\n", int(de.BackendID()), de.BackendName())
			return nil
		},
	}
}

var legacyBackends = map[string]types.BackendID{
	"mdsplus": types.BackendMDSplus,
	"hdf5":    types.BackendHDF5,
	"ascii":   types.BackendASCII,
	"memory":  types.BackendMemory,
	"uda":     types.BackendUDA,
}

func newLegacyURICommand(a *app) *cobra.Command {
	var (
		backend, user, database, version, options string
		pulse, run                                int
	)
	cmd := &cobra.Command{
		Use:   "legacy-uri",
		Short: "Build a data entry URI from legacy parameters.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, ok := legacyBackends[strings.ToLower(backend)]
			if !ok {
				return fmt.Errorf("unknown backend %q", backend)
			}
			s, err := lowlevel.BuildURIFromLegacyParameters(id, pulse, run, user, database, version, options)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, s)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&backend, "backend", "mdsplus", "Backend (mdsplus, hdf5, ascii, memory, uda).")
	flags.IntVar(&pulse, "pulse", 0, "Pulse number.")
	flags.IntVar(&run, "run", 0, "Run number.")
	flags.StringVar(&user, "user", "public", "Database user.")
	flags.StringVar(&database, "database", "", "Database (tokamak) name.")
	flags.StringVar(&version, "version", "3", "Data dictionary version; only the major version is kept.")
	flags.StringVar(&options, "options", "", "Extra query arguments appended to the URI.")
	return cmd
}

func parseTimes(ss []string) ([]float64, error) {
	var out []float64
	for _, s := range ss {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q: %v", s, err)
		}
		out = append(out, f)
	}
	return out, nil
}

func newTimebaseCommand(a *app) *cobra.Command {
	var (
		tmin, tmax float64
		dtime      []string
	)
	cmd := &cobra.Command{
		Use:   "timebase",
		Short: "Print the resampled time basis of a time range.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := parseTimes(dtime)
			if err != nil {
				return err
			}
			if len(dt) == 0 {
				return fmt.Errorf("--dtime is required")
			}
			if tmin > tmax {
				return fmt.Errorf("wrong time range [%g, %g]", tmin, tmax)
			}
			n, tb, err := interp.New().ResampleTimebasis(tmin, tmax, dt, -1, nil)
			if err != nil {
				return err
			}
			for _, t := range tb.Doubles[:n] {
				fmt.Fprintln(a.stdout, strconv.FormatFloat(t, 'g', -1, 64))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.Float64Var(&tmin, "tmin", 0, "Start of the time range.")
	flags.Float64Var(&tmax, "tmax", 0, "End of the time range.")
	flags.StringSliceVar(&dtime, "dtime", nil, "Resampling step, or the explicit list of target times.")
	return cmd
}

var dataTypes = map[string]types.DataType{
	"char":    types.CharData,
	"int":     types.IntegerData,
	"double":  types.DoubleData,
	"complex": types.ComplexData,
}

func newReadCommand(a *app) *cobra.Command {
	var (
		typeName string
		dim      int
		timebase string
	)
	cmd := &cobra.Command{
		Use:   "read <uri> <dataobject> <field>",
		Short: "Read one field of a stored data object.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, ok := dataTypes[strings.ToLower(typeName)]
			if !ok {
				return fmt.Errorf("unknown data type %q", typeName)
			}
			m := lowlevel.NewManager(lowlevel.WithEnvironment(a.env))
			de, err := m.BeginDataEntryAction(args[0], types.OpenPulse)
			if err != nil {
				return err
			}
			defer m.EndAction(de)

			op, err := m.BeginGlobalAction(de, args[1], "", types.ReadOp)
			if err != nil {
				return err
			}
			defer m.EndAction(op)

			data, err := m.ReadData(op, args[2], timebase, dt, dim)
			if err != nil {
				return err
			}
			printBuffer(a, data)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&typeName, "type", "double", "Expected data type (char, int, double, complex).")
	flags.IntVar(&dim, "dim", 1, "Expected number of dimensions.")
	flags.StringVar(&timebase, "timebase", "", "Timebase path of the field.")
	return cmd
}

func printBuffer(a *app, b *types.Buffer) {
	fmt.Fprintf(a.stdout, "%s %v\n", b.Type, b.Shape)
	switch b.Type {
	case types.CharData:
		fmt.Fprintln(a.stdout, b.String())
	case types.IntegerData:
		fmt.Fprintln(a.stdout, b.Ints)
	case types.DoubleData:
		fmt.Fprintln(a.stdout, b.Doubles)
	case types.ComplexData:
		fmt.Fprintln(a.stdout, b.Complex)
	}
}
