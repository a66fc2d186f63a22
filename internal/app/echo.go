// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/z5labs/takes/http1"
	"github.com/z5labs/takes/multipart"
)

// Echo returns a handler which answers with the request head followed by
// a summary of the body. Form submissions are split into parts with opts
// and each part is summarized on its own line.
func Echo(opts ...multipart.Option) http1.Handler {
	return http1.HandlerFunc(func(ctx context.Context, req *http1.Request) (*http1.Response, error) {
		var sb strings.Builder
		for _, line := range req.Head() {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')

		mt, _, err := req.MediaType()
		if err != nil {
			return nil, http1.Errorf(http.StatusBadRequest, "invalid content type: %w", err)
		}
		if mt != "multipart/form-data" {
			n, err := io.Copy(io.Discard, req.Body)
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&sb, "body: %d bytes\n", n)
			return http1.Text(http.StatusOK, sb.String()), nil
		}

		form, err := multipart.Split(ctx, req, opts...)
		if err != nil {
			return nil, err
		}
		for _, name := range form.Names() {
			for _, part := range form.Parts(name) {
				n, err := io.Copy(io.Discard, part.Body)
				if err != nil {
					return nil, err
				}
				fmt.Fprintf(&sb, "part %s: %d bytes", name, n)
				if filename := partFilename(part); filename != "" {
					fmt.Fprintf(&sb, " (%s)", filename)
				}
				sb.WriteByte('\n')
			}
		}
		return http1.Text(http.StatusOK, sb.String()), nil
	})
}

func partFilename(part *http1.Request) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return ""
	}
	return params["filename"]
}
