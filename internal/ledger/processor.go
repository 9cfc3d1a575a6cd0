package ledger

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/event"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/internal/platform/database"
	"github.com/Mara-Dawn/Crunchy-Bot-sub001/pkg/lifecycle"
)

// eventMinHeap 实现了 container/heap 接口
type eventMinHeap []event.Event

func (h eventMinHeap) Len() int            { return len(h) }
func (h eventMinHeap) Less(i, j int) bool  { return h[i].ID < h[j].ID }
func (h eventMinHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventMinHeap) Push(x interface{}) { *h = append(*h, x.(event.Event)) }
func (h *eventMinHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// ledgerProcessor 是缓存的单一写入者，按ID顺序把事实应用到Redis
type ledgerProcessor struct {
	eventChan            chan event.Event
	lastProcessedEventID uint
	buffer               *eventMinHeap
	processMutex         sync.Mutex
	isShutdown           bool
	shutdownMutex        sync.Mutex
}

// globalProcessor 是私有的全局处理器实例
var globalProcessor = ledgerProcessor{
	eventChan: make(chan event.Event, 10000),
}

// initializeProcessor 设置处理器的起始检查点
func initializeProcessor(startID uint) {
	globalProcessor.lastProcessedEventID = startID
	h := &eventMinHeap{}
	heap.Init(h)
	globalProcessor.buffer = h
}

// resetProcessorCheckpoint 在全量重建后把检查点直接推进到日志末尾。
// 重建期间处理器被缓存写锁挡在外面，所以这里只需要更新内存状态。
func resetProcessorCheckpoint(id uint) {
	globalProcessor.processMutex.Lock()
	defer globalProcessor.processMutex.Unlock()
	if id > globalProcessor.lastProcessedEventID {
		globalProcessor.lastProcessedEventID = id
	}
}

// startProcessor 启动处理器的主循环和巡查员
func startProcessor(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	defer gracefulHandle.Close()
	defer forcefulHandle.Close()
	fmt.Println("账本处理器 (Ledger Processor) 已启动。")

	// 立刻收集缺失的事实
	globalProcessor.checkAndRequeueMissedEvents(gracefulHandle.Ctx())
	// 巡查员的生命周期与优雅关闭信号绑定
	patrollerCtx, patrollerCancel := context.WithCancel(gracefulHandle.Ctx())
	defer patrollerCancel()
	go globalProcessor.runPatroller(patrollerCtx)

	globalProcessor.runMainLoop(gracefulHandle, forcefulHandle)
}

// submitEventToQueue 把一条新落盘的事实交给处理器。
// 由事件存储的观察者回调触发，绝不阻塞写入方。
func submitEventToQueue(e event.Event) {
	globalProcessor.shutdownMutex.Lock()
	if globalProcessor.isShutdown {
		globalProcessor.shutdownMutex.Unlock()
		fmt.Printf("警告: 账本处理器已关闭，放弃实时处理 event ID: %d\n", e.ID)
		return
	}
	select {
	case globalProcessor.eventChan <- e:
		globalProcessor.shutdownMutex.Unlock()
	default:
		globalProcessor.shutdownMutex.Unlock()
		fmt.Printf("警告: 账本处理队列已满，暂时放弃实时处理 event ID: %d\n", e.ID)
	}
}

// runMainLoop 是处理器的主事件循环，响应两阶段停机
func (lp *ledgerProcessor) runMainLoop(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	for {
		select {
		case <-gracefulHandle.Done():
			fmt.Println("Ledger Processor: 收到优雅停机信号，正在处理剩余任务...")
			lp.drainQueue(forcefulHandle)
			fmt.Println("Ledger Processor: 优雅停机完成，主循环退出。")
			return
		default:
			lp.processSingleEvent(gracefulHandle)
		}
	}
}

// drainQueue 在收到优雅停机信号后，尽力处理完暂存区和channel中的剩余任务
func (lp *ledgerProcessor) drainQueue(forcefulHandle *lifecycle.Handle) {
	lp.checkAndRequeueMissedEvents(forcefulHandle.Ctx())
	select {
	case <-forcefulHandle.Done():
		fmt.Println("Ledger Processor: 收到强制停机信号，排空队列被中断。")
		return
	default:
	}

	// 关闭channel，不再接收新任务
	lp.shutdownMutex.Lock()
	lp.isShutdown = true
	close(lp.eventChan)
	lp.shutdownMutex.Unlock()

	// 将channel中所有剩余的任务都转移到暂存区
	for e := range lp.eventChan {
		lp.processMutex.Lock()
		heap.Push(lp.buffer, e)
		lp.processMutex.Unlock()
	}

	// 循环处理暂存区，直到它为空或收到强制关闭信号
	for {
		select {
		case <-forcefulHandle.Done():
			fmt.Println("Ledger Processor: 收到强制停机信号，排空队列被中断。")
			return
		default:
		}

		lp.processMutex.Lock()
		if lp.buffer.Len() == 0 {
			lp.processMutex.Unlock()
			return
		}
		// 只处理连续的任务
		if (*lp.buffer)[0].ID == lp.lastProcessedEventID+1 {
			e := heap.Pop(lp.buffer).(event.Event)
			lp.processMutex.Unlock()
			// 排空模式下不再重试，失败即放弃
			if err := lp.applyEventToCache(e); err == nil {
				lp.processMutex.Lock()
				lp.lastProcessedEventID = e.ID
				lp.processMutex.Unlock()
			} else {
				fmt.Printf("排空队列时处理 event ID %d 失败，已放弃: %v\n", e.ID, err)
			}
		} else {
			lp.processMutex.Unlock()
			// 不连续说明有任务丢失，排空结束
			return
		}
	}
}

func (lp *ledgerProcessor) processSingleEvent(gracefulHandle *lifecycle.Handle) {
	next, err := lp.getNextContinuousEvent(gracefulHandle)
	if err != nil {
		return
	}

	// 检查Redis健康状态
	if !database.IsRedisHealthy() {
		fmt.Println("Ledger Processor: 检测到Redis不可用或正在重建，暂停处理...")
		gracefulHandle.Sleep(5 * time.Second)
		lp.processMutex.Lock()
		heap.Push(lp.buffer, next)
		lp.processMutex.Unlock()
		return
	}

	select {
	case <-gracefulHandle.Done():
		return
	default:
	}

	err = lp.applyEventToCacheWithRetry(gracefulHandle, next)
	if err != nil {
		if err != context.Canceled && err != context.DeadlineExceeded {
			fmt.Printf("错误: 处理 event ID %d 失败，已放回队列: %v\n", next.ID, err)
		}
		lp.processMutex.Lock()
		heap.Push(lp.buffer, next)
		lp.processMutex.Unlock()
		return
	}

	// 只有在成功处理后才推进检查点
	lp.processMutex.Lock()
	lp.lastProcessedEventID = next.ID
	lp.processMutex.Unlock()
}

// getNextContinuousEvent 阻塞等待下一个ID连续的事实，可被优雅停机信号中断
func (lp *ledgerProcessor) getNextContinuousEvent(gracefulHandle *lifecycle.Handle) (event.Event, error) {
	for {
		lp.processMutex.Lock()
		// 丢弃所有过时的堆顶元素
		for lp.buffer.Len() > 0 && (*lp.buffer)[0].ID <= lp.lastProcessedEventID {
			heap.Pop(lp.buffer)
		}

		if lp.buffer.Len() > 0 && (*lp.buffer)[0].ID == lp.lastProcessedEventID+1 {
			e := heap.Pop(lp.buffer).(event.Event)
			lp.processMutex.Unlock()
			return e, nil
		}
		lp.processMutex.Unlock()

		select {
		case <-gracefulHandle.Done():
			return event.Event{}, gracefulHandle.Err()
		case e := <-lp.eventChan:
			lp.processMutex.Lock()
			if e.ID <= lp.lastProcessedEventID {
				lp.processMutex.Unlock()
				continue // 过时的事实，直接丢弃
			}
			if e.ID == lp.lastProcessedEventID+1 {
				lp.processMutex.Unlock()
				return e, nil
			}
			// 太新的事实先进暂存区
			heap.Push(lp.buffer, e)
			lp.processMutex.Unlock()
		}
	}
}

// applyEventToCacheWithRetry 带指数退避和健康检查的重试
func (lp *ledgerProcessor) applyEventToCacheWithRetry(gracefulHandle *lifecycle.Handle, e event.Event) error {
	initialDelay := 8 * time.Millisecond
	maxDelay := 2 * time.Second

	delay := initialDelay
	for delay < maxDelay { // 短循环重试
		err := lp.applyEventToCache(e)
		if err == nil {
			return nil
		}
		if err = gracefulHandle.Sleep(delay); err != nil {
			return err
		}
		delay *= 2
	}

	// 进入长循环告警模式
	for {
		if !database.IsRedisHealthy() {
			return errors.New("redis became unhealthy during retry")
		}

		err := lp.applyEventToCache(e)
		if err == nil {
			return nil
		}

		fmt.Printf("告警: Redis持续写入失败，将在%v后重试 event ID %d\n", maxDelay, e.ID)
		if err := gracefulHandle.Sleep(maxDelay); err != nil {
			return err
		}
	}
}

// applyEventToCache 把单条事实应用到Redis缓存。
// 货币事实更新余额和排行；其他类别对缓存没有影响，只推进检查点。
func (lp *ledgerProcessor) applyEventToCache(e event.Event) error {
	lp.processMutex.Lock()
	currentID := lp.lastProcessedEventID
	lp.processMutex.Unlock()
	if currentID >= e.ID {
		return nil
	}

	if e.Type != event.TypeBeans {
		return advanceCheckpoint(e.ID)
	}
	return applyBeansToCache(e)
}

// runPatroller 定期检查数据库中是否有被遗漏的事实
func (lp *ledgerProcessor) runPatroller(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lp.checkAndRequeueMissedEvents(ctx)
		}
	}
}

func (lp *ledgerProcessor) checkAndRequeueMissedEvents(ctx context.Context) {
	if !database.IsRedisHealthy() {
		return
	}

	lp.processMutex.Lock()
	startID := lp.lastProcessedEventID
	bufferMinID := uint(0)
	if lp.buffer.Len() > 0 {
		bufferMinID = (*lp.buffer)[0].ID
	}
	lp.processMutex.Unlock()

	select {
	case <-ctx.Done():
		return
	default:
	}

	missed, err := event.FindAfterID(startID, 1000)
	if err != nil {
		fmt.Printf("巡查员: 查询遗漏事实失败: %v\n", err)
		return
	}
	if bufferMinID > 0 {
		trimmed := missed[:0]
		for _, e := range missed {
			if e.ID < bufferMinID {
				trimmed = append(trimmed, e)
			}
		}
		missed = trimmed
	}

	if len(missed) > 0 {
		lp.processMutex.Lock()
		currentID := lp.lastProcessedEventID
		lp.processMutex.Unlock()
		if bufferMinID > 0 && currentID >= bufferMinID {
			return
		}

		fmt.Printf("巡查员: 发现 %d 条被遗漏的事实，正在提交处理...\n", len(missed))
		for _, e := range missed {
			select {
			case <-ctx.Done():
				return
			default:
				if e.ID > currentID {
					submitEventToQueue(e)
				}
			}
		}
	}
}
