package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"whiteboard-relay/internal/tasks"
)

// WorkerServer 封装了 Asynq Worker Server 的启动和关闭逻辑
type WorkerServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logrus.Entry
}

// NewWorkerServer 创建一个新的 WorkerServer 实例并注册全部镜像任务处理器
func NewWorkerServer(redisOpt asynq.RedisConnOpt, concurrency int, mirror *MirrorTaskHandler, sweep *PresenceSweepHandler, logger *logrus.Logger) *WorkerServer {
	logEntry := logger.WithField("component", "worker_server")
	if concurrency <= 0 {
		concurrency = 10
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueCritical: 6,
				tasks.QueueDefault:  3,
			},
			// 清空和回收必须在同一房间的后续写入之前落地，严格按优先级出队
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskLogger(ctx, task).WithError(err).Error("Task failed")
			}),
		},
	)

	return &WorkerServer{
		server: server,
		mux:    NewServeMux(mirror, sweep),
		log:    logEntry,
	}
}

// NewServeMux 把任务类型路由到对应的处理器
func NewServeMux(mirror *MirrorTaskHandler, sweep *PresenceSweepHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeRoomCreated, mirror.ProcessRoomCreated)
	mux.HandleFunc(tasks.TypeRoomPresence, mirror.ProcessRoomPresence)
	mux.HandleFunc(tasks.TypeStrokePersist, mirror.ProcessStrokePersist)
	mux.HandleFunc(tasks.TypeStrokesClear, mirror.ProcessStrokesClear)
	mux.HandleFunc(tasks.TypeRoomEvicted, mirror.ProcessRoomEvicted)
	if sweep != nil {
		mux.Handle(tasks.TypePresenceSweep, sweep)
	}
	return mux
}

// Start 启动 Worker Server 的处理协程后立即返回，信号处理由调用方负责
func (ws *WorkerServer) Start() error {
	ws.log.Info("Worker server starting...")
	if err := ws.server.Start(ws.mux); err != nil {
		ws.log.WithError(err).Error("Could not start worker server")
		return err
	}
	return nil
}

// Shutdown 优雅地关闭 Worker Server
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
