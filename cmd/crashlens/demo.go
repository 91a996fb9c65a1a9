package main

// Sample crash logs covering every root cause in the built-in catalog,
// used when classify/batch run without --file or --log.
var demoLogs = []string{
	// macOS JBR Metal crash.
	`java.lang.IllegalStateException: Error - unable to initialize Metal after recreation of graphics device. Cannot load metal library: No MTLDevice.
java.desktop/sun.awt.CGraphicsDevice.<init>(CGraphicsDevice.java:91)
Exception in NSApplicationAWT: java.lang.IllegalStateException: Error - unable to initialize Metal`,

	// Windows virtual memory exhausted.
	`Native memory allocation (malloc) failed to allocate 1407664 bytes. Error detail: Chunk::new
Out of Memory Error (arena.cpp:191), pid=2680, tid=9240
# There is insufficient memory for the Java Runtime Environment to continue.`,

	// Physical memory exhausted, with the "Possible reasons" section.
	`# Native memory allocation (malloc) failed to allocate 1330048 bytes. Error detail: Chunk::new
# Possible reasons:
#   The system is out of physical RAM or swap space
#   This process is running with CompressedOops enabled, and the Java Heap may be blocking the growth of the native heap`,

	// chrome_elf.dll access violation.
	`EXCEPTION_ACCESS_VIOLATION (0xc0000005) at pc=0x0000000000000000, pid=928, tid=5776
# Problematic frame:
# C  [chrome_elf.dll+0x1b549]  java.lang.ProcessHandleImpl.getProcessPids0`,

	// GC thread crash, suspected hardware fault.
	`EXCEPTION_ACCESS_VIOLATION (0xc0000005) at pc=0x00007ffd4c6c2580, pid=33548, tid=4488
# Problematic frame:
# V  [jvm.dll+0x3f6d67]
Current thread (0x000002617bfc3730): GCTaskThread "GC Thread#5" [stack: 0x000000777e600000,0x000000777e700000] [id=22192]`,

	// JBR-A-27 intermittent crash.
	`# EXCEPTION_ACCESS_VIOLATION (0xc0000005) at pc=0x00007ffcaed3c475, pid=17708, tid=5556
# JRE version: OpenJDK Runtime Environment JBR-17.0.12+1-1087.25-jcef (17.0.12+1) (build 17.0.12+1-b1087.25)
# Java VM: OpenJDK 64-Bit Server VM JBR-17.0.12+1-1087.25-jcef
# Problematic frame:
# V  [jvm.dll+0x36c475]`,

	// JBR back-buffer null pointer.
	`java.lang.NullPointerException: Cannot invoke "java.awt.image.VolatileImage.getGraphics()" because "this.backBuffers[i]" is null`,
}
