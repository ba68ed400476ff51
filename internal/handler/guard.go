package handler

import (
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/service"
)

// requireUser is the login gate, called first in handlers that need a session.
func requireUser(ident model.Identity) error {
	if ident.Anonymous() {
		return service.ErrAuthRequired
	}
	return nil
}

// requirePremium is the subscription gate. It implies requireUser.
func requirePremium(ident model.Identity) error {
	if err := requireUser(ident); err != nil {
		return err
	}
	if !ident.Premium {
		return service.ErrPremiumRequired
	}
	return nil
}
