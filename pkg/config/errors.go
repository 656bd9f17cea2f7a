// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrInvalidProtocol is returned when Protocol is not simple/hlp/pip.
	ErrInvalidProtocol = errors.New("protocol must be one of: simple, hlp, pip")

	// ErrInvalidLowestPriority is returned when LowestPriority is not positive.
	ErrInvalidLowestPriority = errors.New("lowest priority must be greater than 0")

	// ErrInvalidLogLevel is returned when LogLevel is not recognized.
	ErrInvalidLogLevel = errors.New("log level must be one of: debug, info, warn, error")
)
