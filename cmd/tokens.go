package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mora-na/mimotions/auth"
	"github.com/Mora-na/mimotions/credstore"
)

func newTokensCmd(opts *globalOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect or prune the encrypted token file",
	}
	cmd.PersistentFlags().StringVar(&file, "file", credstore.DefaultPath, "encrypted token file")

	openVault := func(cmd *cobra.Command) (*credstore.Vault, map[string]credstore.Record, error) {
		chain, err := opts.secretChain()
		if err != nil {
			return nil, nil, err
		}
		key, err := aesKey(chain, true, cmd.ErrOrStderr())
		if err != nil {
			return nil, nil, err
		}
		v := credstore.NewVault(file, key)
		if !v.Enabled() {
			return nil, nil, fmt.Errorf("%w: AES_KEY must be exactly %d bytes", credstore.ErrEncryptionUnavailable, credstore.KeyLen)
		}
		records, err := v.Load()
		if err != nil {
			return nil, nil, err
		}
		return v, records, nil
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached accounts and token grant times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, records, err := openVault(cmd)
			if err != nil {
				return err
			}
			store := credstore.NewStore(records)
			renderTokens(cmd.OutOrStdout(), v.Path(), records, store.Keys())
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <account>",
		Short: "Remove an account's cached tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, records, err := openVault(cmd)
			if err != nil {
				return err
			}
			store := credstore.NewStore(records)
			key := auth.NewAccount(args[0], "").Key
			if !store.Delete(key) {
				return fmt.Errorf("no cached tokens for %s", auth.Desensitize(key))
			}
			if err := v.Save(store.Snapshot()); err != nil {
				return fmt.Errorf("saving token file: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed cached tokens for %s (%d remaining).\n", auth.Desensitize(key), store.Len())
			return nil
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
