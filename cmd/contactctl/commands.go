package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"contactdesk/internal/client"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/middleware"
	"contactdesk/internal/pkg/jwt"
	"contactdesk/internal/views/createform"
	"contactdesk/internal/views/directupload"
	"contactdesk/internal/views/editor"
)

// recordFlags are the editable fields shared by create and edit.
var recordFlags = []struct{ flag, field, usage string }{
	{"name", createform.FieldName, "full name"},
	{"phone", createform.FieldPhone, "phone number, digits only"},
	{"email", createform.FieldEmail, "email address"},
	{"age", createform.FieldAge, "age, 18 to 120"},
	{"image-url", createform.FieldImageURL, "image URL"},
}

func addRecordFlags(cmd *cobra.Command) {
	for _, f := range recordFlags {
		cmd.Flags().String(f.flag, "", f.usage)
	}
}

func newListCommand(a *app) *cobra.Command {
	var (
		q      contact.ListQuery
		dir    string
		page   int
		output string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			q.SortDir = contact.SortDir(dir)
			q.Page = page - 1
			q.PageSize = a.pageSize()
			res, err := api.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			if output == "yaml" {
				return printYAML(cmd.OutOrStdout(), res)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(res.Items))
			fmt.Fprintln(cmd.OutOrStdout(), pageStatus(q.Page, contact.TotalPages(res.Total, q.PageSize), res.Total))
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Filter, "filter", "", "case-insensitive name filter")
	cmd.Flags().StringVar(&q.SortKey, "sort", contact.DefaultSortKey, "sort column")
	cmd.Flags().StringVar(&dir, "dir", string(contact.DefaultSortDir), "sort direction, asc or desc")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "table or yaml")
	return cmd
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			c, err := api.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), c)
		},
	}
}

func newCreateCommand(a *app) *cobra.Command {
	var image string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a contact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			form := createform.NewForm(api)
			for _, f := range recordFlags {
				v, _ := cmd.Flags().GetString(f.flag)
				if err := form.Set(f.field, v); err != nil {
					return err
				}
			}
			if image != "" {
				flow, err := uploadFile(cmd, api, image)
				if err != nil {
					return err
				}
				if err := form.AttachImage(flow); err != nil {
					return err
				}
			}
			created, err := form.Submit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", created.ID)
			return nil
		},
	}
	addRecordFlags(cmd)
	cmd.Flags().StringVar(&image, "image", "", "upload this image file and attach it")
	return cmd
}

// batchFile is the document read by create-batch.
type batchFile struct {
	Contacts []struct {
		Name     string `yaml:"name"`
		Phone    string `yaml:"phone"`
		Email    string `yaml:"email"`
		Age      string `yaml:"age"`
		ImageURL string `yaml:"image_url"`
	} `yaml:"contacts"`
}

func newCreateBatchCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create-batch",
		Short: "Create several contacts from a YAML file, all or none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var doc batchFile
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if len(doc.Contacts) == 0 {
				return contact.ErrEmptyBatch
			}

			batch := createform.NewBatch(api)
			for i, c := range doc.Contacts {
				if i > 0 {
					batch.Add()
				}
				values := map[string]string{
					createform.FieldName:     c.Name,
					createform.FieldPhone:    c.Phone,
					createform.FieldEmail:    c.Email,
					createform.FieldAge:      c.Age,
					createform.FieldImageURL: c.ImageURL,
				}
				for field, v := range values {
					if err := batch.Set(i, field, v); err != nil {
						return err
					}
				}
			}
			res, err := batch.Submit(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d contacts\n", res.Count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a contacts list")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newEditCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a contact; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			current, err := api.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			row := editor.New(api, *current)
			if err := row.Edit(); err != nil {
				return err
			}
			for _, f := range recordFlags {
				if !cmd.Flags().Changed(f.flag) {
					continue
				}
				v, _ := cmd.Flags().GetString(f.flag)
				if err := row.Set(f.field, v); err != nil {
					return err
				}
			}
			if err := row.Save(cmd.Context()); err != nil {
				return err
			}
			return printYAML(cmd.OutOrStdout(), row.Record())
		},
	}
	addRecordFlags(cmd)
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			if err := editor.New(api, contact.Contact{ID: args[0]}).Delete(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newUploadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image straight to storage and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			flow, err := uploadFile(cmd, api, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), flow.PublicURL())
			return nil
		},
	}
}

func uploadFile(cmd *cobra.Command, api *client.Client, path string) (*directupload.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = http.DetectContentType(data)
	}

	flow := directupload.New(api, api.HTTP(), directupload.OnChange(func(s directupload.State) {
		fmt.Fprintf(cmd.ErrOrStderr(), "upload: %s\n", s)
	}))
	if err := flow.Select(directupload.File{Name: filepath.Base(path), ContentType: ct, Data: data}); err != nil {
		return nil, err
	}
	if _, err := flow.Start(cmd.Context()); err != nil {
		return nil, err
	}
	return flow, nil
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print contact changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := a.client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return api.Subscribe(cmd.Context(), func(ev contact.ChangeEvent) {
				name := ""
				if ev.Record != nil {
					name = ev.Record.Name
				}
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", time.UnixMilli(ev.At).UTC().Format(time.RFC3339), ev.Type, ev.ID, name)
			})
		},
	}
}

func newTokenCommand(a *app) *cobra.Command {
	var (
		secret  string
		subject string
		email   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator token signed with the API secret (development)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}
			tok, err := jwt.New(secret, ttl).GenerateToken(subject, email, middleware.RoleAuthenticated)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&email, "email", "", "operator email")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func pageStatus(page, pages int, total int64) string {
	return fmt.Sprintf("page %d of %d (%d total)", page+1, max(1, pages), total)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
