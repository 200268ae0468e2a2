package api

import (
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewHTTPServerTimeouts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewHTTPServer("127.0.0.1:0", gin.New())

	assert.Equal(t, "127.0.0.1:0", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.ReadTimeout)
	assert.Equal(t, 60*time.Second, srv.WriteTimeout)
	assert.Equal(t, 120*time.Second, srv.IdleTimeout)
}

func TestWaitForSignal(t *testing.T) {
	ch := SetupSignalHandler()
	go func() {
		ch <- syscall.SIGTERM
	}()

	assert.Equal(t, syscall.SIGTERM, WaitForSignal(ch))
}
