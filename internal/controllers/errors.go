package controllers

import "errors"

var (
	errMissingDocument = errors.New("a document file is required")
	errBadDocument     = errors.New("document could not be read")
)
