package model

import "errors"

var ErrPreferenceNotFound = errors.New("language preference not found")
