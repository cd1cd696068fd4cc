package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	config "CMProject/global/config"
	midsec "CMProject/middleware/security"
	"CMProject/module/chat/message"
	"CMProject/service/chat"
	handler "CMProject/service/chat/handlers"
	"CMProject/service/mgo"
	"CMProject/service/notify"
	"CMProject/service/storage"
	"CMProject/tools/errs"
	"CMProject/tools/security"

	"github.com/gin-gonic/gin"
)

func main() {

	config.ConfigAll()

	if gw := os.Getenv("GATEWAY_ID"); gw != "" {
		config.Global.GatewayID = gw
	}

	authOpts := security.DefaultOptions(config.GetJwtSecret())

	// 存储：mongo 就绪用 mongo，否则退内存（本地联调）
	var store message.Store
	if db, ok := mgo.TryGetDB(); ok {
		store = message.NewMongoStore(db)
	} else {
		log.Println("[boot] mongo unavailable, using in-memory store")
		store = message.NewMemStore()
	}

	conf := chat.ServerConf{
		GatewayID:     config.Global.GatewayID,
		SendQueueSize: config.Global.SendQueueSize,
		PresenceTTL:   config.Global.PresenceTTL,
	}

	mgr := chat.NewConnManagerWithConf(chat.ManagerConf{}, conf.GatewayID)
	engine := chat.NewEngine(store, mgr, notify.NewBridge(config.Global.EmailEnabled))
	s := chat.NewServer(conf, mgr, engine)
	mgr.SetOnEvict(s.OnEvict)
	handler.RegisterAll(s, authOpts)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", s.HandleWS) // e.g. ws://localhost:8080/ws

	// 演示用登录：换取网关令牌
	r.POST("/api/login", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
			c.JSON(http.StatusBadRequest, errs.ErrArgs.WithDetail("user_id required"))
			return
		}
		token, hash, exp, err := security.Generate(authOpts, req.UserID, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, errs.ErrInternalServer.WithDetail(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"hash":      hash,
			"expire_at": exp.UnixMilli(),
		})
	})

	auth := r.Group("/api", midsec.Middleware(midsec.DefaultOptions(authOpts)))
	auth.GET("/presence/:user", func(c *gin.Context) {
		user := c.Param("user")
		gwID, on, err := storage.PresenceLookup(user)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, errs.ErrStorage.WithDetail(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": user, "online": on, "gateway_id": gwID})
	})
	auth.GET("/conversation/:peer", func(c *gin.Context) {
		viewer := c.GetString(midsec.CMCtxUserIDKey)
		msgs, err := engine.ListConversation(c.Request.Context(), viewer, c.Param("peer"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, errs.ErrInternalServer.WithDetail(err.Error()))
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	})

	addr := fmt.Sprintf(":%d", config.Global.Port)
	log.Printf("[HTTP] Listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
