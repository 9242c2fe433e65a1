package main

import (
	"Lumen_Stream/internal/config"
	"Lumen_Stream/internal/media"
	"Lumen_Stream/internal/service"
	"Lumen_Stream/pkg/logger"
	"Lumen_Stream/pkg/rabbitmq"
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/streadway/amqp"
)

// 清理消费者进程：server删视频时如果托管资源删不掉，只会记日志+把任务丢进MQ，
// 数据库记录照删不误（孤儿文件可以忍，指向已删资源的记录不能忍）——这里负责慢慢收尸
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".env文件加载失败，改用已有环境变量")
	}
	logger.InitLogger()

	cfg := config.Load()

	mediaStore, err := media.NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		logger.Log.Fatalf("消费者无法初始化媒体托管服务: %v", err)
	}

	rabbitMQConn, err := rabbitmq.InitRabbitMQ(cfg.AMQPURL)
	if err != nil {
		logger.Log.Fatalf("消费者无法连接到RabbitMQ: %v", err)
	}
	defer rabbitMQConn.Close()

	consumeCleanups(rabbitMQConn, mediaStore)
}

// 清理消息消费者：1、通过mq的TCP连接创建channel 2、声明队列并注册消费者
// 3、循环消费，逐条对托管服务重试删除 4、按错误性质决定Ack还是Nack重试
func consumeCleanups(conn *amqp.Connection, mediaStore media.Store) {
	ch, err := conn.Channel()
	if err != nil {
		logger.Log.Fatalf("无法打开Channel: %v", err)
	}
	defer ch.Close()

	// 声明和生产者一致的持久化队列（幂等）
	if _, err := ch.QueueDeclare(
		service.QueueMediaCleanup, // name
		true,                      // durable
		false,                     // autoDelete
		false,                     // exclusive
		false,                     // noWait
		nil,                       // args
	); err != nil {
		logger.Log.Fatalf("无法声明清理队列: %v", err)
	}

	msgs, err := ch.Consume(
		service.QueueMediaCleanup, // queue
		"",                        // consumer
		false,                     // auto-ack：手动确认，删成功才算完
		false,                     // exclusive
		false,                     // no-local
		false,                     // no-wait
		nil,                       // args
	)
	if err != nil {
		logger.Log.Fatalf("无法注册清理消费者: %v", err)
	}

	// 创建一个没有任何缓冲的bool类型通道
	forever := make(chan bool)

	go func() {
		// msgs不是切片，而是通道channel，如果通道为空不会结束循环，而会“阻塞”
		for d := range msgs {
			logCtx := logger.Log.WithField("body", string(d.Body)).WithField("redelivered", d.Redelivered)
			logCtx.Info("收到一条媒体清理消息")

			var msg service.CleanupMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				logCtx.WithError(err).Error("消息JSON解析失败")
				// 解析不了的“坏消息”重试一万次也还是坏的，直接丢弃
				d.Nack(false, false)
				continue
			}

			err := mediaStore.Destroy(context.Background(), msg.PublicID, msg.ResourceType)
			if err != nil {
				// 资源本来就不在了（上次其实删成功了，或者有人手动清了），算作成功
				if strings.Contains(strings.ToLower(err.Error()), "not found") {
					logCtx.WithError(err).Warn("资源已不存在，清理消息确认为成功")
					d.Ack(false)
					continue
				}
				// 其他错误（网络、配额）才要求重试
				logCtx.WithError(err).Error("托管资源删除重试失败，消息重新入队")
				d.Nack(false, true)
				continue
			}

			logCtx.WithField("public_id", msg.PublicID).Info("托管资源清理成功")
			d.Ack(false)
		}
	}()

	logger.Log.Info(" [*] 等待媒体清理消息中. 按 CTRL+C 退出")
	// 尝试从forever通道里接收一个值，但没有发送者，这会阻止main函数退出
	<-forever
}
