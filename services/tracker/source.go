// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tracker

import (
	"context"
	"strings"

	"github.com/AleutianAI/SamusTracker/services/tracker/poller"
	"github.com/AleutianAI/SamusTracker/services/tracker/retroarch"
)

// retroSource adapts a RetroArch client to the poller's Source.
type retroSource struct {
	client *retroarch.Client
}

var _ poller.Source = (*retroSource)(nil)

// NewSource wraps client so a Poller can read from it.
func NewSource(client *retroarch.Client) poller.Source {
	return &retroSource{client: client}
}

func (s *retroSource) ReadMemory(ctx context.Context, address uint32, length int) ([]byte, error) {
	return s.client.ReadMemory(ctx, address, length)
}

func (s *retroSource) Status(ctx context.Context) (poller.Status, error) {
	l, err := s.client.Liveness(ctx)
	if err != nil {
		return poller.Status{}, err
	}
	return poller.Status{
		Reachable:  l.Reachable,
		GameLoaded: l.Reachable && l.Content.Loaded(),
		Version:    l.Version,
		GameInfo:   gameInfo(l.Content),
	}, nil
}

// gameInfo renders content as "system,game,crc32=...", or "" when nothing
// is loaded.
func gameInfo(c retroarch.ContentStatus) string {
	if !c.Loaded() {
		return ""
	}
	parts := make([]string, 0, 3)
	if c.System != "" {
		parts = append(parts, c.System)
	}
	if c.Game != "" {
		parts = append(parts, c.Game)
	}
	if c.CRC32 != "" {
		parts = append(parts, "crc32="+c.CRC32)
	}
	return strings.Join(parts, ",")
}
