package jail

import (
	"net/http"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/gin-gonic/gin"
)

// JailRequestBody 定义了创建监禁时请求体的JSON结构
type JailRequestBody struct {
	ActorID  string `json:"actor_id" binding:"required"`
	TargetID string `json:"target_id" binding:"required"`
	Minutes  int64  `json:"minutes" binding:"required"`
}

// ReleaseRequestBody 定义了释放请求的JSON结构
type ReleaseRequestBody struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// DeltaRequestBody 定义了手动增减刑期请求的JSON结构
type DeltaRequestBody struct {
	ActorID string `json:"actor_id" binding:"required"`
	Minutes int64  `json:"minutes" binding:"required"`
}

// StatusResponse 是监禁状态查询的响应结构
type StatusResponse struct {
	Active           bool   `json:"active"`
	SentenceID       uint   `json:"sentence_id,omitempty"`
	JailedOn         string `json:"jailed_on,omitempty"`
	RemainingMinutes int64  `json:"remaining_minutes"`
}

// GetStatus 查询一个成员当前的监禁状态
func GetStatus(c *gin.Context) {
	guildID := c.Param("guild_id")
	memberID := c.Param("member_id")

	sentence, err := ActiveSentence(guildID, memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询监禁状态失败"})
		return
	}
	if sentence == nil {
		c.JSON(http.StatusOK, StatusResponse{Active: false})
		return
	}

	remaining, err := Remaining(sentence)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "计算剩余刑期失败"})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Active:           true,
		SentenceID:       sentence.ID,
		JailedOn:         sentence.JailedOn.Format("2006-01-02T15:04:05Z07:00"),
		RemainingMinutes: remaining,
	})
}

// PostJail 创建一条新的监禁
func PostJail(c *gin.Context) {
	guildID := c.Param("guild_id")

	var body JailRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	result, err := Jail(guildID, body.ActorID, body.TargetID, body.Minutes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理监禁请求失败"})
		return
	}
	if !result.Jailed {
		// 业务拒绝不是服务端错误
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PostRelease 释放一个在押成员
func PostRelease(c *gin.Context) {
	guildID := c.Param("guild_id")
	memberID := c.Param("member_id")

	var body ReleaseRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	result, err := Release(guildID, body.ActorID, memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "处理释放请求失败"})
		return
	}
	if !result.Released {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PostDelta 手动增减一条监禁的刑期（调用方自行负责界限策略）
func PostDelta(c *gin.Context) {
	guildID := c.Param("guild_id")
	memberID := c.Param("member_id")

	var body DeltaRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	sentence, err := ActiveSentence(guildID, memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询监禁状态失败"})
		return
	}
	if sentence == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "目标不在监狱里"})
		return
	}

	reason := event.JailReasonExtend
	if body.Minutes < 0 {
		reason = event.JailReasonReduce
	}

	remaining, err := ApplyDelta(sentence.ID, body.ActorID, reason, body.Minutes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "增减刑期失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining_minutes": remaining})
}
