package util

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// ErrPortClosed возвращается при чтении из уже закрытого websocket-моста.
var ErrPortClosed = errors.New("websocket: соединение закрыто")

// WebSocketConfig описывает подключение к последовательному мосту (ser2net-подобный сервис,
// пересылающий байты порта в бинарных websocket-сообщениях).
type WebSocketConfig struct {
	URL              string
	Username         string
	Password         string
	SkipSSLVerify    bool
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
}

// wsPort реализует SerialPortInterface поверх websocket-соединения.
type wsPort struct {
	conn        *websocket.Conn
	buf         []byte
	off         int
	readTimeout time.Duration
	closed      bool
}

// DialWebSocket открывает соединение с мостом.
func DialWebSocket(cfg WebSocketConfig) (SerialPortInterface, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("некорректный URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("неподдерживаемая схема URL: %s (нужна ws:// или wss://)", u.Scheme)
	}

	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshake}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.SkipSSLVerify}
	}

	headers := http.Header{}
	if cfg.Username != "" && cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handshake+5*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ошибка подключения websocket (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("ошибка подключения websocket: %w", err)
	}
	return &wsPort{conn: conn, readTimeout: cfg.ReadTimeout}, nil
}

func (w *wsPort) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrPortClosed
	}
	if w.off < len(w.buf) {
		n := copy(p, w.buf[w.off:])
		w.off += n
		return n, nil
	}

	if w.readTimeout > 0 {
		w.conn.SetReadDeadline(time.Now().Add(w.readTimeout))
	} else {
		w.conn.SetReadDeadline(time.Time{})
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			// После ошибки чтения gorilla/websocket соединение не восстанавливает.
			w.closed = true
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Таймаут отдается как у go.bug.st/serial: пустое чтение без ошибки.
				return 0, nil
			}
			return 0, err
		}
		// Текстовые сообщения моста (статус, приветствие) к протоколу не относятся.
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		w.buf = data
		n := copy(p, w.buf)
		w.off = n
		return n, nil
	}
}

func (w *wsPort) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsPort) Close() error {
	w.closed = true
	return w.conn.Close()
}

func (w *wsPort) SetReadTimeout(t time.Duration) error {
	w.readTimeout = t
	return nil
}
