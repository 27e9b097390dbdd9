package session

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ValentinKolb/uniauth/cmd/util"
	"github.com/ValentinKolb/uniauth/lib/store"
	"github.com/spf13/cobra"
)

var (
	lookupCmd = &cobra.Command{
		Use:   "lookup [key]",
		Short: "Reads the session stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			rec, found, err := rpcClient.Lookup(key)
			if err != nil {
				return err
			}
			if !found {
				fmt.Printf("key=%s, found=false\n", key)
				return nil
			}
			printRecord(&rec)
			return nil
		},
	}
	createCmd = &cobra.Command{
		Use:   "create [key]",
		Short: "Creates a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := recordFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			ok, err := rpcClient.Create(rec)
			if err != nil {
				return err
			}
			return printResult("create", ok)
		},
	}
	commitCmd = &cobra.Command{
		Use:   "commit [key]",
		Short: "Updates the given fields of an existing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := recordFromFlags(cmd, args[0])
			if err != nil {
				return err
			}
			ok, err := rpcClient.Commit(rec)
			if err != nil {
				return err
			}
			return printResult("commit", ok)
		},
	}
	transferCmd = &cobra.Command{
		Use:   "transfer [src] [dst]",
		Short: "Copies the identity of the src session into the dst session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := rpcClient.Transfer(args[0], args[1])
			if err != nil {
				return err
			}
			return printResult("transfer", ok)
		},
	}
)

func init() {
	addRecordFlags(createCmd)
	addRecordFlags(commitCmd)
}

// addRecordFlags adds one flag per record field
func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().Int32("id", 0, util.WrapString("Numeric id of the user"))
	cmd.Flags().String("user", "", util.WrapString("Username"))
	cmd.Flags().String("display", "", util.WrapString("Display name of the user"))
	cmd.Flags().String("expire", "", util.WrapString("Expire time as unix seconds or as a duration from now (e.g. 1700000000, 8h)"))
	cmd.Flags().String("redirect", "", util.WrapString("Location to return to after sign-on"))
	cmd.Flags().String("tag", "", util.WrapString("Free form tag of the session"))
}

// recordFromFlags builds a record from the flags that were set on the command line.
// Flags that were not given are left absent so commit won't overwrite them.
func recordFromFlags(cmd *cobra.Command, key string) (*store.SessionRecord, error) {
	rec := &store.SessionRecord{Key: []byte(key)}
	flags := cmd.Flags()

	if flags.Changed("id") {
		id, _ := flags.GetInt32("id")
		rec.ID = id
	}
	for name, field := range map[string]*[]byte{
		"user":     &rec.Username,
		"display":  &rec.DisplayName,
		"redirect": &rec.Redirect,
		"tag":      &rec.Tag,
	} {
		if flags.Changed(name) {
			value, _ := flags.GetString(name)
			*field = []byte(value)
		}
	}
	if flags.Changed("expire") {
		value, _ := flags.GetString("expire")
		expire, err := parseExpire(value, time.Now())
		if err != nil {
			return nil, err
		}
		rec.Expire = expire
	}

	return rec, nil
}

// parseExpire accepts unix seconds or a duration relative to now
func parseExpire(value string, now time.Time) (int64, error) {
	if sec, err := strconv.ParseInt(value, 10, 64); err == nil {
		return sec, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("expire must be unix seconds or a duration: %q", value)
	}
	return now.Add(d).Unix(), nil
}

func printResult(op string, ok bool) error {
	if !ok {
		return fmt.Errorf("%s rejected by the daemon", op)
	}
	fmt.Printf("%s successfully\n", op)
	return nil
}

func printRecord(rec *store.SessionRecord) {
	fmt.Printf("key=%s, found=true\n", rec.Key)
	if rec.HasID() {
		fmt.Printf("  id:       %d\n", rec.ID)
	}
	if rec.Username != nil {
		fmt.Printf("  user:     %s\n", rec.Username)
	}
	if rec.DisplayName != nil {
		fmt.Printf("  display:  %s\n", rec.DisplayName)
	}
	if rec.Expire > 0 {
		fmt.Printf("  expire:   %d (%s)\n", rec.Expire, time.Unix(rec.Expire, 0).Format(time.RFC3339))
	}
	if rec.Redirect != nil {
		fmt.Printf("  redirect: %s\n", rec.Redirect)
	}
	if rec.Tag != nil {
		fmt.Printf("  tag:      %s\n", rec.Tag)
	}
}
