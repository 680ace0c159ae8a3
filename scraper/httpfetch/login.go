package httpfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// ErrLoginRejected means the site answered the login form with the form again.
var ErrLoginRejected = errors.New("login rejected")

// CredentialLogin signs the HTTP session in by submitting the site's login
// form. Hidden inputs (anti-forgery tokens and the like) are carried over.
type CredentialLogin struct {
	Client        *Client
	LoginURL      string
	Username      string
	Password      string
	UserField     string
	PasswordField string
}

func (l *CredentialLogin) Bootstrap(ctx context.Context) error {
	c := l.Client
	res, err := c.http.R().SetContext(ctx).Get(l.LoginURL)
	if err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("fetch login page: %s", res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return fmt.Errorf("parse login page: %w", err)
	}

	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(`input[type="password"]`).Length() > 0
	}).First()
	if form.Length() == 0 {
		return fmt.Errorf("no login form on %s", l.LoginURL)
	}

	values := url.Values{}
	form.Find(`input[type="hidden"]`).Each(func(_ int, in *goquery.Selection) {
		if name, ok := in.Attr("name"); ok && name != "" {
			values.Set(name, in.AttrOr("value", ""))
		}
	})
	values.Set(l.UserField, l.Username)
	values.Set(l.PasswordField, l.Password)

	action, err := resolveAction(finalURL(res, l.LoginURL), form.AttrOr("action", ""))
	if err != nil {
		return err
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetFormDataFromValues(values).
		Post(action)
	if err != nil {
		return fmt.Errorf("post login form: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrLoginRejected, res.Status())
	}

	after, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err == nil && after.Find(`input[type="password"]`).Length() > 0 {
		return ErrLoginRejected
	}

	c.logger.Info("[http] Logged in as %s", l.Username)
	return nil
}

func resolveAction(page, action string) (string, error) {
	base, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("login page url: %w", err)
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("login form action %q: %w", action, err)
	}
	return base.ResolveReference(ref).String(), nil
}
