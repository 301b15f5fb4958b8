/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"bennypowers.dev/lspc/lsp"
)

func frame(body string) string {
	return fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body)
}

func notification(method string) string {
	return frame(fmt.Sprintf(`{"jsonrpc":"2.0","method":"%s"}`, method))
}

func TestClient_InboundPreservesOrder(t *testing.T) {
	input := notification("one") + notification("two") + notification("three")
	client := NewClient[lsp.Message](lsp.Codec{}, strings.NewReader(input), io.Discard)

	var got []string
	for msg := range client.Inbound() {
		got = append(got, msg.(*lsp.Notification).Method)
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("received %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClient_ReaderStopsAfterExit(t *testing.T) {
	input := notification("exit") + notification("after-exit")
	client := NewClient[lsp.Message](lsp.Codec{}, strings.NewReader(input), io.Discard)

	var got []string
	for msg := range client.Inbound() {
		got = append(got, msg.(*lsp.Notification).Method)
	}
	if len(got) != 1 || got[0] != "exit" {
		t.Errorf("messages after exit = %v, want just [exit]", got)
	}
}

func TestClient_WriteOrderMatchesSendOrder(t *testing.T) {
	reader, writer := io.Pipe()
	client := NewClient[lsp.Message](lsp.Codec{}, strings.NewReader(""), writer)

	methods := []string{"initialize", "initialized", "textDocument/didOpen"}
	go func() {
		for _, method := range methods {
			msg, _ := lsp.NewNotification(method, struct{}{})
			if err := client.Send(msg); err != nil {
				t.Errorf("Send: %v", err)
				return
			}
		}
		client.Close()
	}()

	in := bufio.NewReader(reader)
	for _, want := range methods {
		msg, err := (lsp.Codec{}).Read(in)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		note, ok := msg.(*lsp.Notification)
		if !ok {
			t.Fatalf("read %T, want notification", msg)
		}
		if note.Method != want {
			t.Errorf("method = %q, want %q", note.Method, want)
		}
	}
}

func TestClient_SendAfterCloseFails(t *testing.T) {
	client := NewClient[lsp.Message](lsp.Codec{}, strings.NewReader(""), io.Discard)
	client.Close()

	// wait for the writer to wind down
	deadline := time.Now().Add(time.Second)
	var err error
	for time.Now().Before(deadline) {
		msg, _ := lsp.NewNotification("late", struct{}{})
		if err = client.Send(msg); err != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if err != ErrClosed {
		t.Errorf("Send after close = %v, want ErrClosed", err)
	}
}

func TestClient_DecodeErrorClosesInbound(t *testing.T) {
	input := frame(`{not json`)
	client := NewClient[lsp.Message](lsp.Codec{}, strings.NewReader(input), io.Discard)

	for range client.Inbound() {
		t.Error("no message should be delivered from a bad frame")
	}
	if client.Err() == nil {
		t.Error("decode failure must be recorded")
	}
}

func TestClient_ResponsePassesThrough(t *testing.T) {
	body, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 3, "result": "x"})
	client := NewClient[lsp.Message](lsp.Codec{}, strings.NewReader(frame(string(body))), io.Discard)

	msg := <-client.Inbound()
	resp, ok := msg.(*lsp.Response)
	if !ok {
		t.Fatalf("got %T, want response", msg)
	}
	if resp.ID != 3 {
		t.Errorf("id = %d, want 3", resp.ID)
	}
}
