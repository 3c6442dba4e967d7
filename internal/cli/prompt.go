package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// prompter читает ответы из stdin команды. Один reader на команду, чтобы не терять буфер
type prompter struct {
	cmd    *cobra.Command
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, reader: bufio.NewReader(cmd.InOrStdin())}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.cmd.OutOrStdout(), label)
	s, err := p.reader.ReadString('\n')
	if err != nil && s == "" {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// lineIfEmpty спрашивает значение, только если оно не передано флагом
func (p *prompter) lineIfEmpty(value *string, label string) error {
	if *value != "" {
		return nil
	}
	s, err := p.line(label)
	if err != nil {
		return err
	}
	*value = s
	return nil
}

// password без эха, если stdin терминал; иначе обычная строка (скрипты, тесты)
func (p *prompter) password(label string) (string, error) {
	if f, ok := p.cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.cmd.OutOrStdout(), label)
		pass, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.cmd.OutOrStdout())
		return string(pass), err
	}
	return p.line(label)
}
