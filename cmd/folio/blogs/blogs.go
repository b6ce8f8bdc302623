// Package blogscmder provides the blogs command for reading and managing
// posts.
package blogscmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/folio/internal/cliutil"
	"github.com/papercomputeco/folio/pkg/blog"
)

const blogsLongDesc string = `List, read and manage blog posts.

Reading works without signing in. Creating, updating and deleting posts
require a session from 'folio auth login'.

Examples:
  folio blogs list                          First page of posts
  folio blogs list --tag go --limit 5       Filter by tag
  folio blogs read 42                       Render a post in the terminal
  folio blogs tags                          List every tag
  folio blogs create --title Hi --file post.md --tag intro
  folio blogs update 42 --title Hi --file post.md
  folio blogs delete 42`

const blogsShortDesc string = "List, read and manage blog posts"

const defaultWordWrap = 80

func NewBlogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blogs",
		Short: blogsShortDesc,
		Long:  blogsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newReadCmd())
	cmd.AddCommand(newTagsCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	var q blog.ListQuery

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := s.Blogs.List(cliutil.Context(cmd), q)
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			out := cmd.OutOrStdout()
			if len(res.Blogs) == 0 {
				fmt.Fprintln(out, "No posts found.")
				return nil
			}

			fmt.Fprintln(out, renderList(res))
			fmt.Fprintf(out, "Page %d, showing %d of %d posts.\n", res.Page, len(res.Blogs), res.Total)
			return nil
		},
	}

	cmd.Flags().IntVar(&q.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Posts per page")
	cmd.Flags().StringVar(&q.Tag, "tag", "", "Only posts with this tag")
	cmd.Flags().StringVar(&q.Search, "search", "", "Only posts matching this text")
	return cmd
}

func renderList(res *blog.ListResult) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "TITLE", "TAGS", "UPDATED")

	for _, b := range res.Blogs {
		updated := "-"
		if !b.UpdatedAt.IsZero() {
			updated = b.UpdatedAt.Format("2006-01-02")
		}
		t.Row(b.ID, b.Title, strings.Join(b.Tags, ", "), updated)
	}
	return t.String()
}

func newReadCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Render a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			post, err := s.Blogs.Get(cliutil.Context(cmd), args[0])
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			doc := postMarkdown(post)
			if raw {
				fmt.Fprint(cmd.OutOrStdout(), doc)
				return nil
			}

			rendered, err := renderMarkdown(cmd.OutOrStdout(), doc)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), rendered)
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown source")
	return cmd
}

func postMarkdown(post *blog.Blog) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", post.Title)

	var meta []string
	if post.Author != "" {
		meta = append(meta, "by `"+post.Author+"`")
	}
	if !post.CreatedAt.IsZero() {
		meta = append(meta, post.CreatedAt.Format("January 2, 2006"))
	}
	if len(post.Tags) > 0 {
		meta = append(meta, "tags: "+strings.Join(post.Tags, ", "))
	}
	if len(meta) > 0 {
		fmt.Fprintf(&b, "_%s_\n\n", strings.Join(meta, " · "))
	}

	b.WriteString(strings.TrimSpace(post.Content))
	b.WriteString("\n")
	return b.String()
}

// renderMarkdown styles doc for a terminal, or plainly when out is not one.
func renderMarkdown(out io.Writer, doc string) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(defaultWordWrap)}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			opts[0] = glamour.WithWordWrap(min(width-4, 120))
		}
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(styles.NoTTYStyle))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	rendered, err := r.Render(doc)
	if err != nil {
		return "", fmt.Errorf("rendering post: %w", err)
	}
	return rendered, nil
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			tags, err := s.Blogs.Tags(cliutil.Context(cmd))
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			out := cmd.OutOrStdout()
			if len(tags) == 0 {
				fmt.Fprintln(out, "No tags.")
				return nil
			}
			for _, t := range tags {
				fmt.Fprintln(out, t)
			}
			return nil
		},
	}
}

type draftFlags struct {
	title     string
	excerpt   string
	file      string
	tags      []string
	published bool
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Post title")
	cmd.Flags().StringVar(&f.excerpt, "excerpt", "", "Short summary")
	cmd.Flags().StringVar(&f.file, "file", "", "Markdown file with the post body, - for stdin")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().BoolVar(&f.published, "published", true, "Publish immediately")
}

func (f *draftFlags) draft(in io.Reader) (blog.Draft, error) {
	if f.file == "" {
		return blog.Draft{}, errors.New("flag --file is required")
	}

	var (
		content []byte
		err     error
	)
	if f.file == "-" {
		content, err = io.ReadAll(in)
	} else {
		content, err = os.ReadFile(f.file)
	}
	if err != nil {
		return blog.Draft{}, fmt.Errorf("reading post body: %w", err)
	}

	return blog.Draft{
		Title:     strings.TrimSpace(f.title),
		Excerpt:   strings.TrimSpace(f.excerpt),
		Content:   string(content),
		Tags:      f.tags,
		Published: f.published,
	}, nil
}

func newCreateCmd() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a post",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := flags.draft(cmd.InOrStdin())
			if err != nil {
				return err
			}

			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			post, err := s.Blogs.Create(cliutil.Context(cmd), d)
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created post %s: %s\n", post.ID, post.Title)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := flags.draft(cmd.InOrStdin())
			if err != nil {
				return err
			}

			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			post, err := s.Blogs.Update(cliutil.Context(cmd), args[0], d)
			if err != nil {
				return cliutil.FriendlyError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated post %s: %s\n", post.ID, post.Title)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := cliutil.OpenSession(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := s.Blogs.Delete(cliutil.Context(cmd), args[0]); err != nil {
				return cliutil.FriendlyError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted post %s.\n", args[0])
			return nil
		},
	}
}
