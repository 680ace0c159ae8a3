package browser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chromedp/chromedp"

	"review-scraper/utils"
)

// ManualLogin opens the site in the visible browser window and waits for the
// operator to log in and press ENTER.
type ManualLogin struct {
	Browser *Browser
	HomeURL string
	In      io.Reader
	Logger  *utils.Logger
}

func (m *ManualLogin) Bootstrap(ctx context.Context) error {
	if err := m.Browser.Run(ctx, m.Browser.cfg.NavTimeout(), chromedp.Navigate(m.HomeURL)); err != nil {
		return fmt.Errorf("open %s: %w", m.HomeURL, err)
	}

	m.Logger.Info("[browser] Log in to the site in the browser window, then press ENTER here to start scraping...")
	return waitForEnter(ctx, m.In)
}

func waitForEnter(ctx context.Context, in io.Reader) error {
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(in).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// ErrLoginRejected means the login form was still on screen after submit.
var ErrLoginRejected = errors.New("login rejected")

// CredentialLogin fills and submits the login form in the browser.
type CredentialLogin struct {
	Browser          *Browser
	LoginURL         string
	Username         string
	Password         string
	UserSelector     string
	PasswordSelector string
	SubmitSelector   string
	Logger           *utils.Logger
}

func (c *CredentialLogin) Bootstrap(ctx context.Context) error {
	b := c.Browser
	err := b.Run(ctx, b.cfg.NavTimeout(),
		chromedp.Navigate(c.LoginURL),
		chromedp.WaitVisible(c.UserSelector, chromedp.ByQuery),
		chromedp.SendKeys(c.UserSelector, c.Username, chromedp.ByQuery),
		chromedp.SendKeys(c.PasswordSelector, c.Password, chromedp.ByQuery),
		chromedp.Click(c.SubmitSelector, chromedp.ByQuery),
		chromedp.Sleep(b.cfg.SettleDelay()),
	)
	if err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	var stillThere bool
	js := fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(c.PasswordSelector))
	if err := b.Run(ctx, b.cfg.NavTimeout(), chromedp.Evaluate(js, &stillThere)); err != nil {
		return fmt.Errorf("check login: %w", err)
	}
	if stillThere {
		return ErrLoginRejected
	}

	c.Logger.Info("[browser] Logged in as %s", c.Username)
	return nil
}
